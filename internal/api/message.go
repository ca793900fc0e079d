package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/middleware"
	"github.com/lalith-99/parley/internal/models"
	"go.uber.org/zap"
)

type MessageHandler struct {
	svc    MessageService
	logger *zap.Logger
}

func NewMessageHandler(svc MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

// Create handles POST /v1/messages
//
// The body is a message draft; every shape and envelope rule is checked by
// the service before anything is stored.
func (h *MessageHandler) Create(c *gin.Context) {
	var req models.MessageDraft
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	view, err := h.svc.Send(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, h.logger, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// List handles GET /v1/messages?group=&message_type=&counterpart=&since=&limit=&offset=
//
// Offset pagination, newest first. limit defaults to 50 and is capped at 100
// by the service.
func (h *MessageHandler) List(c *gin.Context) {
	var f models.MessageFilter
	var ok bool

	if f.GroupID, ok = queryID(c, "group"); !ok {
		return
	}
	if f.Counterpart, ok = queryID(c, "counterpart"); !ok {
		return
	}
	f.Kind = models.MessageKind(c.Query("message_type"))

	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			badRequest(c, "since must be an RFC 3339 timestamp", "since")
			return
		}
		f.Since = &since
	}
	if f.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(c, "offset"); !ok {
		return
	}

	msgs, err := h.svc.List(c.Request.Context(), middleware.GetUserID(c), f)
	if err != nil {
		respondError(c, h.logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Get handles GET /v1/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, "get message", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete handles DELETE /v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, h.logger, "delete message", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Receipts handles GET /v1/messages/:id/receipts
func (h *MessageHandler) Receipts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	receipts, err := h.svc.Receipts(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, "list receipts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": id, "read_by": receipts})
}

type markReadRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids" binding:"required"`
}

// MarkRead handles POST /v1/messages/mark-read
//
// Ids the caller cannot read are skipped silently. marked_count is the
// number of receipts created by this call, so a repeat reports 0.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error(), "message_ids")
		return
	}
	receipts, err := h.svc.MarkRead(c.Request.Context(), middleware.GetUserID(c), req.MessageIDs)
	if err != nil {
		respondError(c, h.logger, "mark messages read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_count": len(receipts), "receipts": receipts})
}

type reactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// React handles POST /v1/messages/:id/react. Posting the same emoji twice
// removes it again.
func (h *MessageHandler) React(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error(), "emoji")
		return
	}
	action, err := h.svc.React(c.Request.Context(), middleware.GetUserID(c), id, req.Emoji)
	if err != nil {
		respondError(c, h.logger, "react to message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": id, "emoji": req.Emoji, "action": action})
}

type typingRequest struct {
	GroupID     *uuid.UUID `json:"group"`
	RecipientID *uuid.UUID `json:"recipient_id"`
	IsTyping    bool       `json:"is_typing"`
}

// Typing handles POST /v1/messages/typing. Nothing is stored.
func (h *MessageHandler) Typing(c *gin.Context) {
	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	err := h.svc.Typing(c.Request.Context(), middleware.GetUserID(c), req.GroupID, req.RecipientID, req.IsTyping)
	if err != nil {
		respondError(c, h.logger, "send typing indicator", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnreadCount handles GET /v1/messages/unread-count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	counts, err := h.svc.UnreadCounts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "count unread messages", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// Chats handles GET /v1/chats
func (h *MessageHandler) Chats(c *gin.Context) {
	chats, err := h.svc.ChatList(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "list chats", err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func queryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	s := c.Query(name)
	if s == "" {
		return nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		badRequest(c, "invalid "+name, name)
		return nil, false
	}
	return &id, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		badRequest(c, "invalid '"+name+"' parameter", name)
		return 0, false
	}
	return n, true
}
