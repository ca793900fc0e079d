package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/parley/internal/middleware"
	"github.com/lalith-99/parley/internal/models"
)

// Join handles POST /v1/groups/:id/join
//
// Joining twice is not an error; "joined" tells the caller whether this
// request added them.
func (h *GroupHandler) Join(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	joined, err := h.svc.Join(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, "join group", err)
		return
	}
	status := http.StatusOK
	if joined {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"group_id": id, "joined": joined})
}

// Leave handles POST /v1/groups/:id/leave
func (h *GroupHandler) Leave(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, h.logger, "leave group", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Members handles GET /v1/groups/:id/members?username=&is_admin=
func (h *GroupHandler) Members(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	f := models.MemberFilter{Username: c.Query("username")}
	if s := c.Query("is_admin"); s != "" {
		isAdmin, err := strconv.ParseBool(s)
		if err != nil {
			badRequest(c, "is_admin must be true or false", "is_admin")
			return
		}
		f.IsAdmin = &isAdmin
	}

	members, err := h.svc.Members(c.Request.Context(), middleware.GetUserID(c), id, f)
	if err != nil {
		respondError(c, h.logger, "list members", err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// Promote handles POST /v1/groups/:id/members/:user_id/promote
func (h *GroupHandler) Promote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	target, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	promoted, err := h.svc.Promote(c.Request.Context(), middleware.GetUserID(c), id, target)
	if err != nil {
		respondError(c, h.logger, "promote member", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": id, "user_id": target, "promoted": promoted})
}

// Remove handles DELETE /v1/groups/:id/members/:user_id
func (h *GroupHandler) Remove(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	target, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), middleware.GetUserID(c), id, target); err != nil {
		respondError(c, h.logger, "remove member", err)
		return
	}
	c.Status(http.StatusNoContent)
}
