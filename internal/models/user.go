package models

// Presence values stored on users and broadcast in userStatus events.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string  `db:"id" json:"id"`
	Username     string  `db:"username" json:"username"`
	PasswordHash string  `db:"password_hash" json:"-"`
	Avatar       *string `db:"avatar" json:"avatar"`
	Status       string  `db:"status" json:"status"`
}
