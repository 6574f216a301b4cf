package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-hub/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for direct and channel messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListDirectMessages(ctx context.Context, userID, contactID string) ([]models.Message, error)
	ListChannelMessages(ctx context.Context, channelID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, now: now}
}

const messageColumns = `id, sender_id, receiver_id, channel_id, content, timestamp, read, file_url`

// CreateMessage stores a message bound to exactly one conversation.
func (r *MessageRepo) CreateMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if err := in.Validate(); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		SenderID:   in.SenderID,
		ReceiverID: nullable(in.ReceiverID),
		ChannelID:  nullable(in.ChannelID),
		Content:    in.Content,
		Timestamp:  r.now(),
		FileURL:    nullable(in.FileURL),
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		msg.ID, msg.SenderID, msg.ReceiverID, msg.ChannelID, msg.Content, msg.Timestamp, msg.Read, msg.FileURL)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE id=?`), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListDirectMessages returns the direct conversation between two users in
// either direction, oldest first.
func (r *MessageRepo) ListDirectMessages(ctx context.Context, userID, contactID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE channel_id IS NULL
        AND ((sender_id=? AND receiver_id=?) OR (sender_id=? AND receiver_id=?))
        ORDER BY timestamp ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(query), userID, contactID, contactID, userID)
	return msgs, err
}

// ListChannelMessages returns a channel's messages oldest first.
func (r *MessageRepo) ListChannelMessages(ctx context.Context, channelID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE channel_id=? ORDER BY timestamp ASC`), channelID)
	return msgs, err
}

// MarkRead flags a message as read.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE messages SET read = TRUE WHERE id=?`), messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
