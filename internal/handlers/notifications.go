package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"

	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
)

// NotificationHandler serves the caller's notifications.
type NotificationHandler struct {
	notifications repositories.NotificationRepository
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(notifications repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.ListNotifications(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		jww.ERROR.Printf("list notifications: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

// MarkRead handles PATCH /api/notifications/:notificationId. Only the owner
// can mark a notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	err := h.notifications.MarkRead(c.Request.Context(), c.Param("notificationId"), userIDFromContext(c))
	if err != nil {
		writeLookupError(c, err, "notification not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
