package repository

import (
	"cloud.google.com/go/firestore"

	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

// Repositories groups one implementation of every store contract.
type Repositories struct {
	Products        repository.ProductRepository
	Orders          repository.OrderRepository
	Messages        repository.MessageRepository
	Notifications   repository.NotificationRepository
	Profiles        repository.ProfileRepository
	PaymentAttempts repository.PaymentAttemptRepository
	Outbox          repository.OutboxRepository
}

func NewFirestoreRepositories(client *firestore.Client) *Repositories {
	return &Repositories{
		Products:        NewFirestoreProductRepository(client),
		Orders:          NewFirestoreOrderRepository(client),
		Messages:        NewFirestoreMessageRepository(client),
		Notifications:   NewFirestoreNotificationRepository(client),
		Profiles:        NewFirestoreProfileRepository(client),
		PaymentAttempts: NewFirestorePaymentAttemptRepository(client),
		Outbox:          NewFirestoreOutboxRepository(client),
	}
}

func NewMemoryRepositories(store *MemoryStore) *Repositories {
	return &Repositories{
		Products:        store.Products(),
		Orders:          store.Orders(),
		Messages:        store.Messages(),
		Notifications:   store.Notifications(),
		Profiles:        store.Profiles(),
		PaymentAttempts: store.PaymentAttempts(),
		Outbox:          store.Outbox(),
	}
}

// wrapTxError keeps domain errors raised inside a transaction and wraps the rest.
func wrapTxError(message string, err error) error {
	if _, ok := err.(*errors.AppError); ok {
		return err
	}
	return errors.Internal(message, err)
}
