package repository

import (
	"context"

	"farmlink/internal/domain/entity"
)

type NotificationRepository interface {
	// Create is a no-op when a notification with the same ID already exists.
	Create(ctx context.Context, notification *entity.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}
