package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/parley/internal/middleware"
	"github.com/lalith-99/parley/internal/service"
	"go.uber.org/zap"
)

// GroupHandler serves group lifecycle and membership requests.
type GroupHandler struct {
	svc    GroupService
	logger *zap.Logger
}

func NewGroupHandler(svc GroupService, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger}
}

// createGroupRequest is the JSON body for POST /v1/groups. The creator
// comes from the token, never from the body.
type createGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create handles POST /v1/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error(), "name")
		return
	}
	g, err := h.svc.Create(c.Request.Context(), middleware.GetUserID(c), req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, "create group", err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// List handles GET /v1/groups
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.svc.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "list groups", err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Get handles GET /v1/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	g, err := h.svc.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, "get group", err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// Update handles PATCH /v1/groups/:id. Absent fields keep their value.
func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.GroupUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	g, err := h.svc.Update(c.Request.Context(), middleware.GetUserID(c), id, req)
	if err != nil {
		respondError(c, h.logger, "update group", err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// Delete handles DELETE /v1/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, h.logger, "delete group", err)
		return
	}
	c.Status(http.StatusNoContent)
}
