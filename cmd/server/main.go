package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groupgraph/groupgraph/internal/handlers"
	"github.com/groupgraph/groupgraph/internal/infrastructure/config"
	"github.com/groupgraph/groupgraph/internal/infrastructure/database"
	"github.com/groupgraph/groupgraph/internal/infrastructure/logging"
	"github.com/groupgraph/groupgraph/internal/infrastructure/metrics"
	"github.com/groupgraph/groupgraph/internal/repositories/postgres"
	"github.com/groupgraph/groupgraph/internal/services/group"
	"github.com/groupgraph/groupgraph/internal/services/relation"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultEnv = "dev"

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	logger.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database))

	// Initialize repositories
	relationRepo := postgres.NewPostgresRelationRepository(pg.DB)
	entityRepo := postgres.NewPostgresEntityRepository(pg.DB)

	// Initialize services; kind registration is a one-time setup step
	relationStore := relation.NewStore(group.Kinds(), relationRepo, entityRepo, logger)
	groupService := group.NewService(relationStore, entityRepo, logger)

	// Initialize HTTP API
	exporter := metrics.NewPrometheusExporter()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(metrics.Middleware(exporter))

	e.GET("/healthz", func(c echo.Context) error {
		if err := pg.HealthCheck(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	groupHandler := handlers.NewGroupHandler(groupService, logger)
	groupHandler.RegisterRoutes(e.Group("/v1"))

	// Metrics server on its own port
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("api server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("api server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}
}
