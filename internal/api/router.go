package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/parley/internal/middleware"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries everything NewRouter wires.
type RouterConfig struct {
	Messages  MessageService
	Groups    GroupService
	Keys      KeyService
	Users     middleware.UserProvisioner
	JWTSecret string
	Logger    *zap.Logger

	// Health checks run by /v1/health, keyed by dependency name.
	Health map[string]HealthCheck
}

// NewRouter builds the HTTP surface. /v1/health is public; every other
// /v1 route requires a valid bearer token, and the principal is provisioned
// locally before the handler runs.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(cfg.Logger), middleware.Recovery(cfg.Logger))

	r.GET("/v1/health", health(cfg.Health))

	messages := NewMessageHandler(cfg.Messages, cfg.Logger)
	groups := NewGroupHandler(cfg.Groups, cfg.Logger)
	users := NewUserHandler(cfg.Keys, cfg.Logger)

	v1 := r.Group("/v1")
	v1.Use(
		middleware.AuthMiddleware(cfg.JWTSecret),
		middleware.ProvisionUser(cfg.Users, cfg.Logger),
	)

	v1.GET("/users/me", users.GetMe)
	v1.GET("/user-keys/:id", users.GetKey)
	v1.PUT("/user-keys/me", users.SetKey)
	v1.POST("/bulk-public-keys", users.BulkKeys)

	v1.POST("/groups", groups.Create)
	v1.GET("/groups", groups.List)
	v1.GET("/groups/:id", groups.Get)
	v1.PATCH("/groups/:id", groups.Update)
	v1.DELETE("/groups/:id", groups.Delete)
	v1.POST("/groups/:id/join", groups.Join)
	v1.POST("/groups/:id/leave", groups.Leave)
	v1.GET("/groups/:id/members", groups.Members)
	v1.POST("/groups/:id/members/:user_id/promote", groups.Promote)
	v1.DELETE("/groups/:id/members/:user_id", groups.Remove)

	v1.POST("/messages", messages.Create)
	v1.GET("/messages", messages.List)
	v1.GET("/messages/unread-count", messages.UnreadCount)
	v1.POST("/messages/mark-read", messages.MarkRead)
	v1.POST("/messages/typing", messages.Typing)
	v1.GET("/messages/:id", messages.Get)
	v1.DELETE("/messages/:id", messages.Delete)
	v1.GET("/messages/:id/receipts", messages.Receipts)
	v1.POST("/messages/:id/react", messages.React)
	v1.GET("/chats", messages.Chats)

	return r
}

// health answers load balancer checks. Each check gets a short deadline;
// any failure turns the response into a 503 naming the dependency.
func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
