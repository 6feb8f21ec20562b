package repository

import (
	"context"
	"database/sql"
	"time"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

const attemptColumns = `id,order_id,buyer_id,amount,currency,payment_method_token,status,retries,reference,failure_reason,created_at,updated_at`

type postgresPaymentAttemptRepository struct {
	db *sql.DB
}

func NewPostgresPaymentAttemptRepository(db *sql.DB) repository.PaymentAttemptRepository {
	return &postgresPaymentAttemptRepository{db: db}
}

func (r *postgresPaymentAttemptRepository) Save(ctx context.Context, a *entity.PaymentAttempt) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO payment_attempts (`+attemptColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET payment_method_token=$6,status=$7,retries=$8,reference=$9,failure_reason=$10,updated_at=$12`,
		a.ID, a.OrderID, a.BuyerID, a.Amount, a.Currency, a.PaymentMethodToken, string(a.Status), a.Retries, a.Reference,
		a.FailureReason, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return errors.Internal("Failed to save payment attempt", err)
	}
	return nil
}

func (r *postgresPaymentAttemptRepository) GetByID(ctx context.Context, id string) (*entity.PaymentAttempt, error) {
	a, err := scanAttempt(r.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Payment attempt", err)
	}
	if err != nil {
		return nil, errors.Internal("Failed to get payment attempt", err)
	}
	return a, nil
}

func (r *postgresPaymentAttemptRepository) ListUnsettled(ctx context.Context, before time.Time, limit int) ([]*entity.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+attemptColumns+` FROM payment_attempts
		WHERE status IN ($1,$2) AND updated_at < $3 ORDER BY updated_at LIMIT $4`,
		string(entity.AttemptInitiated), string(entity.AttemptAuthorized), before, limit)
	if err != nil {
		return nil, errors.Internal("Failed to list payment attempts", err)
	}
	defer rows.Close()

	var attempts []*entity.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, errors.Internal("Failed to parse payment attempt row", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate payment attempts", err)
	}
	return attempts, nil
}

func scanAttempt(row rowScanner) (*entity.PaymentAttempt, error) {
	var a entity.PaymentAttempt
	err := row.Scan(&a.ID, &a.OrderID, &a.BuyerID, &a.Amount, &a.Currency, &a.PaymentMethodToken, (*string)(&a.Status),
		&a.Retries, &a.Reference, &a.FailureReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
