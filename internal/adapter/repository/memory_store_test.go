package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlink/internal/domain/entity"
	"farmlink/pkg/errors"
)

func seedProduct(t *testing.T, store *MemoryStore, quantity int) *entity.Product {
	t.Helper()
	p := &entity.Product{
		ID:       "p1",
		FarmerID: "farmer-1",
		Name:     "Tomatoes",
		Price:    decimal.RequireFromString("2.50"),
		Quantity: quantity,
		Status:   entity.ProductActive,
	}
	require.NoError(t, store.Products().Create(context.Background(), p))
	return p
}

func newEvent(t *testing.T, aggregateID string) *entity.OutboxEvent {
	t.Helper()
	e, err := entity.NewOutboxEvent(entity.EventOrderCreated, aggregateID, []string{"buyer-1"}, map[string]string{"id": aggregateID}, time.Now())
	require.NoError(t, err)
	return e
}

func TestMemoryReservationIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	product := seedProduct(t, store, 5)
	orders := store.Orders()

	order := entity.NewOrder("o1", "buyer-1", product, 6, "addr", "", time.Now())
	_, err := orders.CreateWithReservation(ctx, order, newEvent(t, "o1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInsufficientStock))

	_, err = orders.GetByID(ctx, "o1")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	pending, _ := store.Outbox().PullPending(ctx, 10)
	assert.Empty(t, pending)

	order = entity.NewOrder("o2", "buyer-1", product, 5, "addr", "", time.Now())
	_, err = orders.CreateWithReservation(ctx, order, newEvent(t, "o2"))
	require.NoError(t, err)

	stored, err := store.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Quantity)
	assert.Equal(t, entity.ProductSold, stored.Status)

	pending, _ = store.Outbox().PullPending(ctx, 10)
	assert.Len(t, pending, 1)
}

func TestMemoryTransitionCompareAndSetAndRestock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	product := seedProduct(t, store, 4)
	orders := store.Orders()

	_, err := orders.CreateWithReservation(ctx, entity.NewOrder("o1", "buyer-1", product, 4, "addr", "", time.Now()), nil)
	require.NoError(t, err)

	_, err = orders.Transition(ctx, "o1", entity.OrderConfirmed, entity.OrderShipped, false, time.Now(), nil)
	assert.True(t, errors.Is(err, errors.CodeConflict))

	updated, err := orders.Transition(ctx, "o1", entity.OrderPending, entity.OrderCancelled, true, time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, updated.Status)

	stored, _ := store.Products().GetByID(ctx, "p1")
	assert.Equal(t, 4, stored.Quantity)
	assert.Equal(t, entity.ProductActive, stored.Status)
}

func TestMemoryCompletePaymentOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	product := seedProduct(t, store, 4)
	orders := store.Orders()

	_, err := orders.CreateWithReservation(ctx, entity.NewOrder("o1", "buyer-1", product, 1, "addr", "", time.Now()), nil)
	require.NoError(t, err)

	paid, err := orders.CompletePayment(ctx, "o1", "pi_1", time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentCompleted, paid.PaymentStatus)
	assert.Equal(t, entity.OrderConfirmed, paid.Status)

	_, err = orders.CompletePayment(ctx, "o1", "pi_2", time.Now(), nil)
	assert.True(t, errors.Is(err, errors.CodeConflict))

	stored, _ := orders.GetByID(ctx, "o1")
	assert.Equal(t, "pi_1", stored.PaymentReference)
}

func TestMemoryMarkThreadRead(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	messages := store.Messages()
	now := time.Now()

	for i, m := range []*entity.Message{
		{ID: "m1", SenderID: "b", ReceiverID: "a", CreatedAt: now},
		{ID: "m2", SenderID: "b", ReceiverID: "a", CreatedAt: now.Add(time.Second)},
		{ID: "m3", SenderID: "c", ReceiverID: "a", CreatedAt: now.Add(2 * time.Second)},
		{ID: "m4", SenderID: "a", ReceiverID: "b", CreatedAt: now.Add(3 * time.Second)},
	} {
		require.NoError(t, messages.Create(ctx, m, nil), "message %d", i)
	}

	n, err := messages.MarkThreadRead(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = messages.MarkThreadRead(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	unread, _ := messages.CountUnread(ctx, "a")
	assert.Equal(t, 1, unread)

	thread, total, err := messages.ListThread(ctx, "a", "b", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "m4", thread[0].ID)
}

func TestMemoryOutboxParksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	product := seedProduct(t, store, 4)

	event := newEvent(t, "o1")
	_, err := store.Orders().CreateWithReservation(ctx, entity.NewOrder("o1", "buyer-1", product, 1, "addr", "", time.Now()), event)
	require.NoError(t, err)

	outbox := store.Outbox()
	require.NoError(t, outbox.MarkFailed(ctx, event.ID, "broker down", 2))
	pending, _ := outbox.PullPending(ctx, 10)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	require.NoError(t, outbox.MarkFailed(ctx, event.ID, "broker down", 2))
	pending, _ = outbox.PullPending(ctx, 10)
	assert.Empty(t, pending)
}

func TestMemoryOutboxDropsSentEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	product := seedProduct(t, store, 4)

	first, second := newEvent(t, "o1"), newEvent(t, "o2")
	_, err := store.Orders().CreateWithReservation(ctx, entity.NewOrder("o1", "buyer-1", product, 1, "addr", "", time.Now()), first)
	require.NoError(t, err)
	_, err = store.Orders().CreateWithReservation(ctx, entity.NewOrder("o2", "buyer-1", product, 1, "addr", "", time.Now()), second)
	require.NoError(t, err)
	require.Len(t, store.outbox, 2)

	outbox := store.Outbox()
	require.NoError(t, outbox.MarkSent(ctx, first.ID))
	require.Len(t, store.outbox, 1)
	assert.Equal(t, second.ID, store.outbox[0].ID)

	err = outbox.MarkSent(ctx, first.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	require.NoError(t, outbox.MarkSent(ctx, second.ID))
	assert.Empty(t, store.outbox)
}

func TestMemoryOrderWritesStampCallerTime(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	product := seedProduct(t, store, 4)
	orders := store.Orders()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := orders.CreateWithReservation(ctx, entity.NewOrder("o1", "buyer-1", product, 1, "addr", "", created), nil)
	require.NoError(t, err)
	_, err = orders.CreateWithReservation(ctx, entity.NewOrder("o2", "buyer-1", product, 1, "addr", "", created), nil)
	require.NoError(t, err)

	paidAt := created.Add(time.Hour)
	paid, err := orders.CompletePayment(ctx, "o1", "pi_1", paidAt, nil)
	require.NoError(t, err)
	assert.True(t, paid.UpdatedAt.Equal(paidAt))

	shippedAt := created.Add(2 * time.Hour)
	shipped, err := orders.Transition(ctx, "o1", entity.OrderConfirmed, entity.OrderShipped, false, shippedAt, nil)
	require.NoError(t, err)
	assert.True(t, shipped.UpdatedAt.Equal(shippedAt))

	cancelledAt := created.Add(3 * time.Hour)
	_, err = orders.Transition(ctx, "o2", entity.OrderPending, entity.OrderCancelled, true, cancelledAt, nil)
	require.NoError(t, err)

	stored, err := orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(shippedAt))

	restocked, err := store.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, restocked.UpdatedAt.Equal(cancelledAt))
}
