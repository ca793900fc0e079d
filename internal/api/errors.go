package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/errs"
	"go.uber.org/zap"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errs.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Client errors carry the message and the
// offending fields; anything else is logged and reported as a generic 500
// so driver details never reach the client.
func respondError(c *gin.Context, logger *zap.Logger, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("failed to "+action, zap.Error(err))
		c.JSON(status, gin.H{"error": "failed to " + action})
		return
	}

	body := gin.H{"error": err.Error()}
	if fields := errs.Fields(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.JSON(status, body)
}

// badRequest is respondError for malformed input caught in the handler.
func badRequest(c *gin.Context, msg string, fields ...string) {
	body := gin.H{"error": msg}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	c.JSON(http.StatusBadRequest, body)
}

// pathID parses the uuid path parameter name.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name, name)
		return uuid.Nil, false
	}
	return id, true
}
