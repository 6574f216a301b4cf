package models

import "time"

// Channel is a named group conversation.
type Channel struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	CreatorID   string    `db:"creator_id" json:"creatorId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	IsPrivate   bool      `db:"is_private" json:"isPrivate"`
}

// NewChannel carries the fields needed to create a channel.
type NewChannel struct {
	Name        string
	Description string
	CreatorID   string
	IsPrivate   bool
}
