// Package handlers exposes the group service over a JSON HTTP API. The
// handlers own only argument mapping and status codes; all semantics live
// in the services layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/groupgraph/groupgraph/internal/entities"
	"github.com/groupgraph/groupgraph/internal/services/group"
	"github.com/groupgraph/groupgraph/internal/services/relation"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GroupHandler handles group API requests
type GroupHandler struct {
	service *group.Service
	logger  *zap.Logger
}

// NewGroupHandler creates a new GroupHandler
func NewGroupHandler(service *group.Service, logger *zap.Logger) *GroupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the group API on the given route group
func (h *GroupHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/groups", h.HandleMake)
	g.POST("/groups/amend", h.HandleAmend)
	g.GET("/groups", h.HandleGet)
	g.GET("/groups/:id", h.HandleGet)

	g.GET("/owners/:owner_id/groups", h.HandleListGroups)
	g.GET("/groups/:id/owners", h.HandleListOwners)
	g.POST("/groups/:id/owners", h.HandleAddOwner)
	g.DELETE("/groups/:id/owners/:owner_id", h.HandleRemoveOwner)

	g.POST("/groups/:id/users", h.HandleAddUser)
	g.DELETE("/groups/:id/users/:user_id", h.HandleRemoveUser)
	g.GET("/groups/:id/users", h.HandleListUsers)
	g.GET("/users/:user_id/groups", h.HandleListUserGroups)
	g.GET("/users/:user_id/membership", h.HandleCheckMembership)
}

type groupBody struct {
	Name string   `json:"name"`
	Code string   `json:"code,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

type groupView struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Code   string   `json:"code,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Unique bool     `json:"unique,omitempty"`
	SV     int      `json:"sv"`
}

type edgeView struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	ParentID string   `json:"parent_id"`
	ChildID  string   `json:"child_id"`
	Code     string   `json:"code,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type memberView struct {
	ID     string         `json:"id"`
	Entity map[string]any `json:"entity,omitempty"`
	Edge   *edgeView      `json:"edge,omitempty"`
}

// HandleMake creates a group under an owner
// POST /v1/groups {owner_id, group:{name,code,tags}, unique}
func (h *GroupHandler) HandleMake(c echo.Context) error {
	var body struct {
		OwnerID string    `json:"owner_id"`
		Group   groupBody `json:"group"`
		Unique  bool      `json:"unique,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	resp, err := h.service.Make(c.Request().Context(), &group.MakeRequest{
		OwnerID: body.OwnerID,
		Group:   group.GroupSpec{Name: body.Group.Name, Code: body.Group.Code, Tags: body.Group.Tags},
		Unique:  body.Unique,
	})
	if err != nil {
		return h.serviceError(c, "make group", err)
	}

	status := http.StatusCreated
	if resp.Existed {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{
		"group":   viewGroup(resp.Group),
		"existed": resp.Existed,
	})
}

// HandleAmend amends a group resolved by id or by (owner_id, code)
// POST /v1/groups/amend {id | owner_id+code, remove, group:{name,tags}}
func (h *GroupHandler) HandleAmend(c echo.Context) error {
	var body struct {
		ID      string    `json:"id,omitempty"`
		OwnerID string    `json:"owner_id,omitempty"`
		Code    string    `json:"code,omitempty"`
		Remove  bool      `json:"remove,omitempty"`
		Group   groupBody `json:"group"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	resp, err := h.service.Amend(c.Request().Context(), &group.AmendRequest{
		ID:      body.ID,
		OwnerID: body.OwnerID,
		Code:    body.Code,
		Remove:  body.Remove,
		Group:   group.GroupSpec{Name: body.Group.Name, Code: body.Group.Code, Tags: body.Group.Tags},
	})
	if err != nil {
		return h.serviceError(c, "amend group", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"group": viewGroup(resp.Group)})
}

// HandleGet resolves a group by path id or by owner_id+code query
// GET /v1/groups/:id?owners=true | GET /v1/groups?owner_id=&code=
func (h *GroupHandler) HandleGet(c echo.Context) error {
	resp, err := h.service.Get(c.Request().Context(), &group.GetRequest{
		ID:      c.Param("id"),
		OwnerID: c.QueryParam("owner_id"),
		Code:    c.QueryParam("code"),
		Owners:  c.QueryParam("owners") == "true",
	})
	if err != nil {
		return h.serviceError(c, "get group", err)
	}
	if resp.Group == nil {
		return c.JSON(http.StatusNotFound, map[string]any{"group": nil})
	}

	out := map[string]any{"group": viewGroup(resp.Group)}
	if resp.Owners != nil {
		out["owners"] = viewMembers(resp.Owners)
	}
	return c.JSON(http.StatusOK, out)
}

// HandleListGroups lists an owner's groups
// GET /v1/owners/:owner_id/groups?code=
func (h *GroupHandler) HandleListGroups(c echo.Context) error {
	resp, err := h.service.ListGroups(c.Request().Context(), &group.ListGroupsRequest{
		OwnerID: c.Param("owner_id"),
		Code:    c.QueryParam("code"),
	})
	if err != nil {
		return h.serviceError(c, "list groups", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"items": viewGroups(resp.Items)})
}

// HandleListOwners lists a group's owners
// GET /v1/groups/:id/owners?as=id|entity|edge&code=
func (h *GroupHandler) HandleListOwners(c echo.Context) error {
	shape, err := relation.ParseShape(c.QueryParam("as"))
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid shape", err)
	}

	resp, err := h.service.ListOwners(c.Request().Context(), &group.ListOwnersRequest{
		ID:    c.Param("id"),
		Code:  c.QueryParam("code"),
		Shape: shape,
	})
	if err != nil {
		return h.serviceError(c, "list owners", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"items": viewMembers(resp.Items)})
}

// HandleAddOwner links a group to an additional owner
// POST /v1/groups/:id/owners {owner_id, code, tags}
func (h *GroupHandler) HandleAddOwner(c echo.Context) error {
	var body struct {
		OwnerID string   `json:"owner_id"`
		Code    string   `json:"code,omitempty"`
		Tags    []string `json:"tags,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	resp, err := h.service.AddOwner(c.Request().Context(), &group.AddOwnerRequest{
		ID:      c.Param("id"),
		OwnerID: body.OwnerID,
		Code:    body.Code,
		Tags:    body.Tags,
	})
	if err != nil {
		return h.serviceError(c, "add owner", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"added": resp.Added})
}

// HandleRemoveOwner severs one ownership edge
// DELETE /v1/groups/:id/owners/:owner_id
func (h *GroupHandler) HandleRemoveOwner(c echo.Context) error {
	resp, err := h.service.RemoveOwner(c.Request().Context(), &group.RemoveOwnerRequest{
		ID:      c.Param("id"),
		OwnerID: c.Param("owner_id"),
	})
	if err != nil {
		return h.serviceError(c, "remove owner", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"id": resp.ID, "owner_id": resp.OwnerID})
}

// HandleAddUser adds a user to a group
// POST /v1/groups/:id/users {user_id, code, tags}
func (h *GroupHandler) HandleAddUser(c echo.Context) error {
	var body struct {
		UserID string   `json:"user_id"`
		Code   string   `json:"code,omitempty"`
		Tags   []string `json:"tags,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	member, err := h.service.AddUser(c.Request().Context(), &group.AddUserRequest{
		UserID:  body.UserID,
		GroupID: c.Param("id"),
		Code:    body.Code,
		Tags:    body.Tags,
	})
	if err != nil {
		return h.serviceError(c, "add user", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"member": viewEdge(member)})
}

// HandleRemoveUser removes a user from a group
// DELETE /v1/groups/:id/users/:user_id?code=
func (h *GroupHandler) HandleRemoveUser(c echo.Context) error {
	resp, err := h.service.RemoveUser(c.Request().Context(), &group.RemoveUserRequest{
		UserID:  c.Param("user_id"),
		GroupID: c.Param("id"),
		Code:    c.QueryParam("code"),
	})
	if err != nil {
		return h.serviceError(c, "remove user", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"member": viewEdge(resp.Member)})
}

// HandleListUsers lists a group's member users
// GET /v1/groups/:id/users?code=
func (h *GroupHandler) HandleListUsers(c echo.Context) error {
	resp, err := h.service.ListUsers(c.Request().Context(), &group.ListUsersRequest{
		GroupID: c.Param("id"),
		Code:    c.QueryParam("code"),
	})
	if err != nil {
		return h.serviceError(c, "list users", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"items": viewMembers(resp.Items)})
}

// HandleListUserGroups lists a user's groups, optionally filtered to one owner
// GET /v1/users/:user_id/groups?owner_id=&code=&owner_code=
func (h *GroupHandler) HandleListUserGroups(c echo.Context) error {
	resp, err := h.service.ListUserGroups(c.Request().Context(), &group.ListUserGroupsRequest{
		UserID:    c.Param("user_id"),
		OwnerID:   c.QueryParam("owner_id"),
		Code:      c.QueryParam("code"),
		OwnerCode: c.QueryParam("owner_code"),
	})
	if err != nil {
		return h.serviceError(c, "list user groups", err)
	}

	return c.JSON(http.StatusOK, map[string]any{"items": viewGroups(resp.Items)})
}

// HandleCheckMembership checks user membership, resolving the group from an
// owner code when no group id is given
// GET /v1/users/:user_id/membership?group_id=&group_code=&owner_id=&owner_code=
func (h *GroupHandler) HandleCheckMembership(c echo.Context) error {
	resp, err := h.service.CheckMembership(c.Request().Context(), &group.CheckMembershipRequest{
		UserID:    c.Param("user_id"),
		GroupID:   c.QueryParam("group_id"),
		GroupCode: c.QueryParam("group_code"),
		OwnerID:   c.QueryParam("owner_id"),
		OwnerCode: c.QueryParam("owner_code"),
	})
	if err != nil {
		return h.serviceError(c, "check membership", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"member":     viewEdge(resp.Member),
		"user_id":    resp.UserID,
		"group_id":   resp.GroupID,
		"group_code": resp.GroupCode,
		"owner_id":   resp.OwnerID,
		"owner_code": resp.OwnerCode,
	})
}

// serviceError maps service failures onto HTTP statuses
func (h *GroupHandler) serviceError(c echo.Context, op string, err error) error {
	if errors.Is(err, relation.ErrUnknownKind) {
		return h.Error(c, http.StatusBadRequest, op+" failed", err)
	}
	return h.Error(c, http.StatusInternalServerError, op+" failed", err)
}

// Error logs the failure and writes a JSON error response
func (h *GroupHandler) Error(c echo.Context, status int, msg string, err error) error {
	h.logger.Warn(msg,
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err))
	return c.JSON(status, map[string]any{"error": msg})
}

func viewGroup(g *entities.Group) *groupView {
	if g == nil {
		return nil
	}
	return &groupView{
		ID:     g.ID,
		Name:   g.Name,
		Code:   g.Code,
		Tags:   g.Tags,
		Unique: g.Unique,
		SV:     g.SV,
	}
}

func viewGroups(groups []*entities.Group) []*groupView {
	views := make([]*groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, viewGroup(g))
	}
	return views
}

func viewEdge(e *entities.Edge) *edgeView {
	if e == nil {
		return nil
	}
	return &edgeView{
		ID:       e.ID,
		Kind:     e.Kind,
		ParentID: e.ParentID,
		ChildID:  e.ChildID,
		Code:     e.Code,
		Tags:     e.Tags,
	}
}

func viewMembers(members []*relation.Member) []*memberView {
	views := make([]*memberView, 0, len(members))
	for _, m := range members {
		v := &memberView{ID: m.ID}
		if m.Entity != nil {
			v.Entity = m.Entity.Fields
		}
		v.Edge = viewEdge(m.Edge)
		views = append(views, v)
	}
	return views
}
