package repository

import (
	"context"
	"database/sql"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

const messageColumns = `id,sender_id,receiver_id,type,content,media_url,product_id,read,created_at`

type postgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) repository.MessageRepository {
	return &postgresMessageRepository{db: db}
}

func (r *postgresMessageRepository) Create(ctx context.Context, m *entity.Message, event *entity.OutboxEvent) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO messages (`+messageColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			m.ID, m.SenderID, m.ReceiverID, string(m.Type), m.Content, m.MediaURL, m.ProductID, m.Read, m.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.Conflict("Message already exists")
			}
			return err
		}
		return insertOutbox(ctx, tx, event)
	})
	if err != nil {
		return wrapTxError("Failed to create message", err)
	}
	return nil
}

func (r *postgresMessageRepository) ListForParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE sender_id=$1 OR receiver_id=$1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, errors.Internal("Failed to list messages", err)
	}
	return collectMessages(rows)
}

func (r *postgresMessageRepository) ListThread(ctx context.Context, a, b string, limit, offset int) ([]*entity.Message, int64, error) {
	const cond = ` WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)`

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages`+cond, a, b).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages`+cond+
		` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, a, b, limit, offset)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list thread", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *postgresMessageRepository) MarkThreadRead(ctx context.Context, viewerID, otherID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read=TRUE
		WHERE receiver_id=$1 AND sender_id=$2 AND read=FALSE`, viewerID, otherID)
	if err != nil {
		return 0, errors.Internal("Failed to mark messages as read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Internal("Failed to mark messages as read", err)
	}
	return int(n), nil
}

func (r *postgresMessageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE receiver_id=$1 AND read=FALSE`, userID).Scan(&n)
	if err != nil {
		return 0, errors.Internal("Failed to count unread messages", err)
	}
	return n, nil
}

func collectMessages(rows *sql.Rows) ([]*entity.Message, error) {
	defer rows.Close()

	messages := []*entity.Message{}
	for rows.Next() {
		var m entity.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, (*string)(&m.Type), &m.Content, &m.MediaURL,
			&m.ProductID, &m.Read, &m.CreatedAt); err != nil {
			return nil, errors.Internal("Failed to parse message row", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate messages", err)
	}
	return messages, nil
}
