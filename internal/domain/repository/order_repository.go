package repository

import (
	"context"
	"time"

	"farmlink/internal/domain/entity"
)

// OrderRepository is the only writer of orders. Every mutating method also
// enqueues its outbox event in the same atomic write.
type OrderRepository interface {
	// CreateWithReservation takes order.Quantity out of the product's stock and
	// inserts the order. When stock is short it returns InsufficientStock and
	// writes nothing.
	CreateWithReservation(ctx context.Context, order *entity.Order, event *entity.OutboxEvent) (*entity.Order, error)

	// Transition moves the order from -> to only if it is still in from,
	// otherwise Conflict. restock puts the order quantity back on the product.
	// at becomes updated_at, matching the event built by the caller.
	Transition(ctx context.Context, id string, from, to entity.OrderStatus, restock bool, at time.Time, event *entity.OutboxEvent) (*entity.Order, error)

	// CompletePayment marks a pending payment completed and confirms a pending
	// order. A payment that is no longer pending yields Conflict.
	CompletePayment(ctx context.Context, id, reference string, at time.Time, event *entity.OutboxEvent) (*entity.Order, error)

	GetByID(ctx context.Context, id string) (*entity.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error)
	ListByFarmer(ctx context.Context, farmerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error)
}
