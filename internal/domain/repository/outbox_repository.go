package repository

import (
	"context"

	"farmlink/internal/domain/entity"
)

// OutboxRepository is read by the relay. Events are written by the
// repositories whose state change they describe.
type OutboxRepository interface {
	// PullPending returns pending events oldest first.
	PullPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed records a delivery error and bumps Attempts. After maxAttempts
	// the event is parked as failed and no longer pulled.
	MarkFailed(ctx context.Context, id, reason string, maxAttempts int) error
}
