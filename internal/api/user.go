package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/middleware"
	"github.com/lalith-99/parley/internal/models"
	"go.uber.org/zap"
)

// UserHandler serves profile and public-key requests. Key material is
// passed through untouched.
type UserHandler struct {
	keys   KeyService
	logger *zap.Logger
}

func NewUserHandler(keys KeyService, logger *zap.Logger) *UserHandler {
	return &UserHandler{keys: keys, logger: logger}
}

type profile struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	HasEncryption bool      `json:"has_encryption"`
	CreatedAt     time.Time `json:"created_at"`
}

type publicKeyResponse struct {
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	PublicKey     string    `json:"public_key"`
	HasEncryption bool      `json:"has_encryption"`
}

func keyResponse(u *models.User) publicKeyResponse {
	return publicKeyResponse{
		UserID:        u.ID,
		Username:      u.Username,
		PublicKey:     u.PublicKey,
		HasEncryption: u.HasEncryption(),
	}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	u, err := h.keys.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, profile{
		ID:            u.ID,
		Username:      u.Username,
		HasEncryption: u.HasEncryption(),
		CreatedAt:     u.CreatedAt,
	})
}

type setKeyRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
}

// SetKey handles PUT /v1/user-keys/me
func (h *UserHandler) SetKey(c *gin.Context) {
	var req setKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error(), "public_key")
		return
	}
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	if err := h.keys.Set(ctx, userID, req.PublicKey); err != nil {
		respondError(c, h.logger, "set public key", err)
		return
	}
	u, err := h.keys.Get(ctx, userID)
	if err != nil {
		respondError(c, h.logger, "get public key", err)
		return
	}
	c.JSON(http.StatusOK, keyResponse(u))
}

// GetKey handles GET /v1/user-keys/:id. "me" resolves to the caller.
func (h *UserHandler) GetKey(c *gin.Context) {
	var id uuid.UUID
	if c.Param("id") == "me" {
		id = middleware.GetUserID(c)
	} else {
		var ok bool
		if id, ok = pathID(c, "id"); !ok {
			return
		}
	}
	u, err := h.keys.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get public key", err)
		return
	}
	c.JSON(http.StatusOK, keyResponse(u))
}

type bulkKeysRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required"`
}

// BulkKeys handles POST /v1/bulk-public-keys. Users without a key are
// absent from the result.
func (h *UserHandler) BulkKeys(c *gin.Context) {
	var req bulkKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error(), "user_ids")
		return
	}
	keys, err := h.keys.Bulk(c.Request.Context(), req.UserIDs)
	if err != nil {
		respondError(c, h.logger, "get public keys", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}
