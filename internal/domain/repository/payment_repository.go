package repository

import (
	"context"
	"time"

	"farmlink/internal/domain/entity"
)

type PaymentAttemptRepository interface {
	Save(ctx context.Context, attempt *entity.PaymentAttempt) error
	GetByID(ctx context.Context, id string) (*entity.PaymentAttempt, error)
	// ListUnsettled returns initiated or authorized attempts last touched before cutoff.
	ListUnsettled(ctx context.Context, before time.Time, limit int) ([]*entity.PaymentAttempt, error)
}
