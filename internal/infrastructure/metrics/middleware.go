package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware returns an echo middleware that records request metrics for
// each matched route.
func Middleware(exporter *PrometheusExporter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			exporter.RecordRequest(route)
			exporter.RecordDuration(route, time.Since(start))

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = 500
				}
			}
			if status >= 400 {
				exporter.RecordError(route, strconv.Itoa(status))
			}

			return err
		}
	}
}
