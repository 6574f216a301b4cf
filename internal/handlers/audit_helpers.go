package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-hub/internal/middleware"
	"chat-hub/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, action, text string) {
	if audit == nil {
		return
	}
	audit.Emit(c.Request.Context(), level, action, text, requestIDFromContext(c), userIDFromContext(c))
}
