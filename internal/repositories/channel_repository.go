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

var ErrChannelNotFound = errors.New("channel not found")

// ChannelRepository abstracts channel and membership persistence.
type ChannelRepository interface {
	CreateChannel(ctx context.Context, ch models.NewChannel) (models.Channel, error)
	GetChannel(ctx context.Context, channelID string) (models.Channel, error)
	ListChannels(ctx context.Context) ([]models.Channel, error)
	ListUserChannels(ctx context.Context, userID string) ([]models.Channel, error)
	AddMember(ctx context.Context, channelID, userID string) error
	RemoveMember(ctx context.Context, channelID, userID string) error
	ListMembers(ctx context.Context, channelID string) ([]models.User, error)
	IsMember(ctx context.Context, channelID, userID string) (bool, error)
}

// ChannelRepo is a sqlx implementation of ChannelRepository.
type ChannelRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewChannelRepo constructs a ChannelRepo.
func NewChannelRepo(db *sqlx.DB) *ChannelRepo {
	return &ChannelRepo{db: db, now: now}
}

const channelColumns = `id, name, description, creator_id, created_at, is_private`

// CreateChannel creates a channel with its creator as first member atomically.
func (r *ChannelRepo) CreateChannel(ctx context.Context, in models.NewChannel) (models.Channel, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Channel{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	ch := models.Channel{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: nullable(in.Description),
		CreatorID:   in.CreatorID,
		CreatedAt:   r.now(),
		IsPrivate:   in.IsPrivate,
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO channels (`+channelColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		ch.ID, ch.Name, ch.Description, ch.CreatorID, ch.CreatedAt, ch.IsPrivate); err != nil {
		return models.Channel{}, err
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO channel_members (channel_id, user_id, joined_at) VALUES (?, ?, ?)`),
		ch.ID, ch.CreatorID, ch.CreatedAt); err != nil {
		return models.Channel{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Channel{}, err
	}
	return ch, nil
}

// GetChannel fetches a single channel.
func (r *ChannelRepo) GetChannel(ctx context.Context, channelID string) (models.Channel, error) {
	var ch models.Channel
	err := r.db.GetContext(ctx, &ch, r.db.Rebind(`SELECT `+channelColumns+` FROM channels WHERE id=?`), channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, ErrChannelNotFound
	}
	return ch, err
}

// ListChannels returns all channels oldest first.
func (r *ChannelRepo) ListChannels(ctx context.Context) ([]models.Channel, error) {
	channels := []models.Channel{}
	err := r.db.SelectContext(ctx, &channels, `SELECT `+channelColumns+` FROM channels ORDER BY created_at ASC`)
	return channels, err
}

// ListUserChannels returns the channels the user belongs to.
func (r *ChannelRepo) ListUserChannels(ctx context.Context, userID string) ([]models.Channel, error) {
	channels := []models.Channel{}
	err := r.db.SelectContext(ctx, &channels, r.db.Rebind(`SELECT c.id, c.name, c.description, c.creator_id, c.created_at, c.is_private
        FROM channels c INNER JOIN channel_members cm ON cm.channel_id = c.id
        WHERE cm.user_id=? ORDER BY c.created_at ASC`), userID)
	return channels, err
}

// AddMember adds a user to a channel. Adding an existing member is a no-op.
func (r *ChannelRepo) AddMember(ctx context.Context, channelID, userID string) error {
	if _, err := r.GetChannel(ctx, channelID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO channel_members (channel_id, user_id, joined_at) VALUES (?, ?, ?)
        ON CONFLICT (channel_id, user_id) DO NOTHING`), channelID, userID, r.now())
	return err
}

// RemoveMember removes a user from a channel; absent members are ignored.
func (r *ChannelRepo) RemoveMember(ctx context.Context, channelID, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM channel_members WHERE channel_id=? AND user_id=?`), channelID, userID)
	return err
}

// ListMembers returns the registered users that belong to a channel.
func (r *ChannelRepo) ListMembers(ctx context.Context, channelID string) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`SELECT u.id, u.username, u.password_hash, u.avatar, u.status
        FROM users u INNER JOIN channel_members cm ON cm.user_id = u.id
        WHERE cm.channel_id=? ORDER BY cm.joined_at ASC`), channelID)
	return users, err
}

// IsMember checks membership.
func (r *ChannelRepo) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM channel_members WHERE channel_id=? AND user_id=?)`), channelID, userID)
	return exists, err
}
