package repository

import (
	"context"
	"database/sql"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	data, err := entity.EncodeNotificationPayload(n.Payload)
	if err != nil {
		return errors.Internal("Failed to encode notification", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO notifications (id,user_id,type,title,message,data,read,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, string(data), n.Read, n.CreatedAt)
	if err != nil {
		return errors.Internal("Failed to create notification", err)
	}
	return nil
}

func (r *postgresNotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	const cond = ` WHERE user_id=$1 AND (NOT $2 OR read=FALSE)`

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notifications`+cond, userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count notifications", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id,user_id,type,title,message,data,read,created_at FROM notifications`+cond+
		` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list notifications", err)
	}
	defer rows.Close()

	notifications := []*entity.Notification{}
	for rows.Next() {
		var (
			n    entity.Notification
			data string
		)
		if err := rows.Scan(&n.ID, &n.UserID, (*string)(&n.Type), &n.Title, &n.Message, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, errors.Internal("Failed to parse notification row", err)
		}
		if n.Payload, err = entity.DecodeNotificationPayload(n.Type, []byte(data)); err != nil {
			return nil, 0, errors.Internal("Failed to decode notification payload", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Internal("Failed to iterate notifications", err)
	}
	return notifications, total, nil
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return errors.Internal("Failed to mark notification as read", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Notification", nil)
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE user_id=$1 AND read=FALSE`, userID)
	if err != nil {
		return 0, errors.Internal("Failed to mark notifications as read", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *postgresNotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notifications WHERE user_id=$1 AND read=FALSE`, userID).Scan(&n); err != nil {
		return 0, errors.Internal("Failed to count unread notifications", err)
	}
	return n, nil
}
