package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/errs"
	"go.uber.org/zap"
)

// UserProvisioner creates or refreshes the local row for a principal.
type UserProvisioner interface {
	Ensure(ctx context.Context, userID uuid.UUID, username string) error
}

// ProvisionUser runs after AuthMiddleware. Every table that records who did
// something references users(id), so the principal from the token must have
// a row before any handler writes on their behalf.
func ProvisionUser(users UserProvisioner, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetUserID(c)
		if id == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
			return
		}

		// Tokens without a display name still need a unique username.
		name := GetUsername(c)
		if name == "" {
			name = id.String()
		}

		err := users.Ensure(c.Request.Context(), id, name)
		if errors.Is(err, errs.ErrAlreadyExists) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			logger.Error("failed to provision user", zap.String("user_id", id.String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to provision user"})
			return
		}
		c.Next()
	}
}
