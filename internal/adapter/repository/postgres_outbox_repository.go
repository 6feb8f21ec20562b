package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

type postgresOutboxRepository struct {
	db *sql.DB
}

func NewPostgresOutboxRepository(db *sql.DB) repository.OutboxRepository {
	return &postgresOutboxRepository{db: db}
}

func (r *postgresOutboxRepository) PullPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,type,aggregate_id,recipients,payload,status,attempts,last_error,created_at,sent_at
		FROM outbox WHERE status=$1 ORDER BY created_at LIMIT $2`, string(entity.OutboxPending), limit)
	if err != nil {
		return nil, errors.Internal("Failed to read outbox", err)
	}
	defer rows.Close()

	var events []*entity.OutboxEvent
	for rows.Next() {
		var (
			e       entity.OutboxEvent
			payload string
			sentAt  pq.NullTime
		)
		if err := rows.Scan(&e.ID, (*string)(&e.Type), &e.AggregateID, pq.Array(&e.Recipients), &payload,
			(*string)(&e.Status), &e.Attempts, &e.LastError, &e.CreatedAt, &sentAt); err != nil {
			return nil, errors.Internal("Failed to parse outbox row", err)
		}
		e.Payload = []byte(payload)
		if sentAt.Valid {
			e.SentAt = &sentAt.Time
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate outbox", err)
	}
	return events, nil
}

func (r *postgresOutboxRepository) MarkSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET status=$1, sent_at=$2 WHERE id=$3`,
		string(entity.OutboxSent), time.Now(), id)
	if err != nil {
		return errors.Internal("Failed to mark outbox event sent", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Outbox event", nil)
	}
	return nil
}

func (r *postgresOutboxRepository) MarkFailed(ctx context.Context, id, reason string, maxAttempts int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox
		SET attempts = attempts + 1,
			last_error = $1,
			status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4`, reason, maxAttempts, string(entity.OutboxFailed), id)
	if err != nil {
		return errors.Internal("Failed to mark outbox event failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Outbox event", nil)
	}
	return nil
}
