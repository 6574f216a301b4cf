package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	jww "github.com/spf13/jwalterweatherman"
)

// Connect opens the database for the given driver and runs migrations.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if driver == "sqlite3" {
		// An in-memory sqlite database exists per connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Migrate creates the schema. Statements are valid for both postgres and
// sqlite; ids and timestamps are generated by the application.
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id VARCHAR(64) PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            avatar TEXT,
            status VARCHAR(16) NOT NULL DEFAULT 'offline'
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id VARCHAR(64) PRIMARY KEY,
            sender_id VARCHAR(64) NOT NULL,
            receiver_id VARCHAR(64),
            channel_id VARCHAR(64),
            content TEXT NOT NULL,
            timestamp TIMESTAMP NOT NULL,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            file_url TEXT,
            CHECK ((receiver_id IS NULL) <> (channel_id IS NULL))
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages (sender_id, receiver_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages (channel_id, timestamp);`,
		`CREATE TABLE IF NOT EXISTS channels (
            id VARCHAR(64) PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT,
            creator_id VARCHAR(64) NOT NULL,
            created_at TIMESTAMP NOT NULL,
            is_private BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		`CREATE TABLE IF NOT EXISTS channel_members (
            channel_id VARCHAR(64) NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
            user_id VARCHAR(64) NOT NULL,
            joined_at TIMESTAMP NOT NULL,
            PRIMARY KEY(channel_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS reactions (
            id VARCHAR(64) PRIMARY KEY,
            message_id VARCHAR(64) NOT NULL,
            user_id VARCHAR(64) NOT NULL,
            emoji TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions (message_id);`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id VARCHAR(64) PRIMARY KEY,
            user_id VARCHAR(64) NOT NULL,
            sender_name TEXT NOT NULL,
            message_preview TEXT NOT NULL,
            type VARCHAR(16) NOT NULL DEFAULT 'message',
            read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	jww.INFO.Println("database migrations applied")
	return nil
}
