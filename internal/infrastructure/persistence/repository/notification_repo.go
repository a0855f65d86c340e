package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/infrastructure/persistence/sqldb"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqldb.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

const notificationColumns = `id, user_id, application_id, event_type, subject, message, delivered, delivered_at, is_read, created_at`

// Create appends a notification record
func (r *NotificationRepository) Create(ctx context.Context, n *entity.NotificationEvent) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = dbTime(n.CreatedAt)

	query := r.db.Rebind(`
		INSERT INTO notification_events (
			user_id, application_id, event_type, subject, message, delivered, is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		n.UserID,
		nullInt64(n.ApplicationID),
		n.EventType,
		n.Subject,
		n.Message,
		n.Delivered,
		n.Read,
		n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID),
			zap.String("event_type", n.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// MarkDelivered flags a record as delivered
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	query := r.db.Rebind(`UPDATE notification_events SET delivered = ?, delivered_at = ? WHERE id = ?`)

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, true, dbTime(at), id); err != nil {
		r.logger.Error("Failed to mark notification delivered", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification delivered: %w", err)
	}
	return nil
}

// MarkRead flags a recipient's record as read. Returns false when the record
// does not belong to the user.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, id int64) (bool, error) {
	query := r.db.Rebind(`UPDATE notification_events SET is_read = ? WHERE id = ? AND user_id = ?`)

	res, err := r.db.Executor(ctx).ExecContext(ctx, query, true, id, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListByUser returns a user's notifications, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.NotificationEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + notificationColumns + ` FROM notification_events WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	return r.list(ctx, r.db.Rebind(query), args...)
}

// ListByApplicationID returns every notification about an application in insertion order
func (r *NotificationRepository) ListByApplicationID(ctx context.Context, applicationID int64) ([]*entity.NotificationEvent, error) {
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notification_events WHERE application_id = ? ORDER BY id`)
	return r.list(ctx, query, applicationID)
}

func (r *NotificationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.NotificationEvent, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.NotificationEvent
	for rows.Next() {
		var n entity.NotificationEvent
		var appID sql.NullInt64
		var deliveredAt sql.NullTime

		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&appID,
			&n.EventType,
			&n.Subject,
			&n.Message,
			&n.Delivered,
			&deliveredAt,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if appID.Valid {
			id := appID.Int64
			n.ApplicationID = &id
		}
		if deliveredAt.Valid {
			t := deliveredAt.Time
			n.DeliveredAt = &t
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
