package models

import (
	"errors"
	"time"
)

// ErrInvalidMessage is returned when a message is not bound to exactly one
// conversation.
var ErrInvalidMessage = errors.New("message must have exactly one of receiver or channel")

// Message is a persisted direct or channel message.
type Message struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	ReceiverID *string   `db:"receiver_id" json:"receiverId"`
	ChannelID  *string   `db:"channel_id" json:"channelId"`
	Content    string    `db:"content" json:"content"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	Read       bool      `db:"read" json:"read"`
	FileURL    *string   `db:"file_url" json:"fileUrl"`
}

// IsChannel reports whether the message belongs to a channel.
func (m Message) IsChannel() bool {
	return m.ChannelID != nil && *m.ChannelID != ""
}

// NewMessage carries the fields a caller supplies when creating a message.
type NewMessage struct {
	SenderID   string
	ReceiverID string
	ChannelID  string
	Content    string
	FileURL    string
}

// Validate enforces the receiver XOR channel invariant.
func (m NewMessage) Validate() error {
	if m.SenderID == "" || m.Content == "" {
		return errors.New("message requires sender and content")
	}
	if (m.ReceiverID == "") == (m.ChannelID == "") {
		return ErrInvalidMessage
	}
	return nil
}
