package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-hub/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository defines interactions for notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.NewNotification) (models.Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
}

// NotificationRepo is a sqlx-backed implementation.
type NotificationRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db, now: now}
}

// CreateNotification stores an unread notification.
func (r *NotificationRepo) CreateNotification(ctx context.Context, in models.NewNotification) (models.Notification, error) {
	n := models.Notification{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		SenderName:     in.SenderName,
		MessagePreview: in.MessagePreview,
		Type:           in.Type,
		CreatedAt:      r.now(),
	}
	if n.Type == "" {
		n.Type = models.NotificationMessage
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO notifications (id, user_id, sender_name, message_preview, type, read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		n.ID, n.UserID, n.SenderName, n.MessagePreview, n.Type, n.Read, n.CreatedAt)
	if err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// ListNotifications returns a user's notifications newest first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := r.db.SelectContext(ctx, &notifications, r.db.Rebind(`SELECT id, user_id, sender_name, message_preview, type, read, created_at
        FROM notifications WHERE user_id=? ORDER BY created_at DESC`), userID)
	return notifications, err
}

// MarkRead flags a notification owned by userID as read. A notification of
// another user is reported as ErrNotificationNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications SET read = TRUE WHERE id=? AND user_id=?`), notificationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
