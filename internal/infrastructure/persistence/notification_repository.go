package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/pkg/constants"
	"github.com/permitworks/backend/pkg/utils"
)

// NotificationRepository persists notification intents using the outbox
// pattern: intents are inserted in the same transaction as the transition
// that produced them, then dispatched asynchronously.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = "id, recipient_id, title, body, status, retry_count, is_read, created_time, processed_time"

// Enqueue inserts an intent into the outbox
func (r *NotificationRepository) Enqueue(ctx context.Context, exec Executor, intent models.NotificationIntent, now time.Time) (string, error) {
	id := utils.GenerateID()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, recipient_id, title, body, status, retry_count, is_read, created_time)
		VALUES (?, ?, ?, ?, ?, 0, FALSE, ?)
	`, constants.TableNotification)

	_, err := exec.ExecContext(ctx, query, id, intent.RecipientID, intent.Title, intent.Body, models.NotificationPending, now)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return id, nil
}

// ListPending retrieves pending notifications ordered by creation time
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]*models.Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE status = ? ORDER BY created_time ASC LIMIT ?
	`, notificationColumns, constants.TableNotification)

	rows, err := r.db.QueryContext(ctx, query, models.NotificationPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	return r.scanNotifications(rows)
}

// MarkProcessed marks a notification as delivered
func (r *NotificationRepository) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, processed_time = ? WHERE id = ?
	`, constants.TableNotification)

	_, err := r.db.ExecContext(ctx, query, models.NotificationProcessed, now, id)
	return err
}

// MarkFailed increments the retry counter; past maxRetries the notification
// is parked as failed instead of retried forever.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, maxRetries int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET retry_count = retry_count + 1,
		    status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END
		WHERE id = ?
	`, constants.TableNotification)

	_, err := r.db.ExecContext(ctx, query, maxRetries, models.NotificationFailed, models.NotificationPending, id)
	return err
}

// ListByRecipient returns a user's notifications, newest first
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE recipient_id = ? ORDER BY created_time DESC LIMIT ?
	`, notificationColumns, constants.TableNotification)

	rows, err := r.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	return r.scanNotifications(rows)
}

// MarkRead marks a notification as read by its recipient
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET is_read = TRUE WHERE id = ? AND recipient_id = ?
	`, constants.TableNotification)

	res, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *NotificationRepository) scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		n := &models.Notification{}
		var processed sql.NullTime
		err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.Status, &n.RetryCount, &n.IsRead, &n.CreatedTime, &processed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ProcessedTime = models.NullableTime(processed)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
