package models

import "time"

// Reaction is an emoji attached to a message by a user. Several reactions per
// (message, user) may coexist.
type Reaction struct {
	ID        string    `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"messageId"`
	UserID    string    `db:"user_id" json:"userId"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
