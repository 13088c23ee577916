package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/proshop/internal/domain/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationStorage описывает методы для работы с уведомлениями.
// Все изменяющие методы ограничены владельцем уведомления.
type NotificationStorage interface {
	// CreateNotifications записывает пачку уведомлений одним запросом.
	CreateNotifications(ctx context.Context, notifications []models.Notification) (int64, error)
	// ListByUser возвращает последние уведомления пользователя, новые первыми.
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	DeleteAllByUser(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id, userID int64) error
	DeleteMany(ctx context.Context, ids []int64, userID int64) (int64, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationStorage {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateNotifications(ctx context.Context, notifications []models.Notification) (int64, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	userIDs := make([]int64, len(notifications))
	titles := make([]string, len(notifications))
	messages := make([]string, len(notifications))
	types := make([]string, len(notifications))
	createdAt := make([]string, len(notifications))
	for i, n := range notifications {
		userIDs[i] = n.UserID
		titles[i] = n.Title
		messages[i] = n.Message
		types[i] = n.Type
		createdAt[i] = n.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `INSERT INTO notifications (user_id, title, message, type, read, created_at)
		SELECT n.user_id, n.title, n.message, n.type, FALSE, n.created_at
		FROM unnest($1::bigint[], $2::text[], $3::text[], $4::text[], $5::timestamptz[])
			AS n(user_id, title, message, type, created_at)`
	res, err := r.db.ExecContext(ctx, query,
		pq.Array(userIDs), pq.Array(titles), pq.Array(messages), pq.Array(types), pq.Array(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notifications: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return expectAffected(res, ErrNotificationNotFound)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) DeleteAllByUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear notifications: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return expectAffected(res, ErrNotificationNotFound)
}

func (r *notificationRepository) DeleteMany(ctx context.Context, ids []int64, userID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ANY($1) AND user_id = $2", pq.Array(ids), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return res.RowsAffected()
}
