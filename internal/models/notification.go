package models

import "time"

// Notification kinds.
const (
	NotificationMessage = "message"
	NotificationChannel = "channel"
)

// Notification is derived from message delivery.
type Notification struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	SenderName     string    `db:"sender_name" json:"senderName"`
	MessagePreview string    `db:"message_preview" json:"messagePreview"`
	Type           string    `db:"type" json:"type"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// NewNotification carries the fields needed to create a notification.
type NewNotification struct {
	UserID         string
	SenderName     string
	MessagePreview string
	Type           string
}

// Preview returns the first n runes of content.
func Preview(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n])
}
