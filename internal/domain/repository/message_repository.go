package repository

import (
	"context"

	"farmlink/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message, event *entity.OutboxEvent) error
	// ListForParticipant returns one page of messages sent or received by
	// userID, newest first.
	ListForParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Message, error)
	// ListThread returns messages between a and b, newest first.
	ListThread(ctx context.Context, a, b string, limit, offset int) ([]*entity.Message, int64, error)
	// MarkThreadRead flips every unread message from otherID to viewerID and
	// returns how many changed.
	MarkThreadRead(ctx context.Context, viewerID, otherID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}
