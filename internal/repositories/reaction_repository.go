package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-hub/internal/models"
)

// ReactionRepository defines interactions for message reactions.
type ReactionRepository interface {
	AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Reaction, error)
	ListReactions(ctx context.Context, messageID string) ([]models.Reaction, error)
	RemoveReaction(ctx context.Context, reactionID string) error
}

// ReactionRepo is a sqlx-backed implementation.
type ReactionRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db, now: now}
}

// AddReaction stores a reaction. Duplicates are allowed.
func (r *ReactionRepo) AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Reaction, error) {
	reaction := models.Reaction{
		ID:        uuid.NewString(),
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: r.now(),
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO reactions (id, message_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?, ?)`),
		reaction.ID, reaction.MessageID, reaction.UserID, reaction.Emoji, reaction.CreatedAt)
	if err != nil {
		return models.Reaction{}, err
	}
	return reaction, nil
}

// ListReactions returns the reactions on a message oldest first.
func (r *ReactionRepo) ListReactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	reactions := []models.Reaction{}
	err := r.db.SelectContext(ctx, &reactions, r.db.Rebind(`SELECT id, message_id, user_id, emoji, created_at FROM reactions WHERE message_id=? ORDER BY created_at ASC`), messageID)
	return reactions, err
}

// RemoveReaction deletes a reaction; missing ids are ignored.
func (r *ReactionRepo) RemoveReaction(ctx context.Context, reactionID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM reactions WHERE id=?`), reactionID)
	return err
}
