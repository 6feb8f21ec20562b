package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlink/internal/domain/entity"
)

func placeOrder(t *testing.T, f *fixture) (*entity.Order, entity.Actor) {
	t.Helper()
	farmer := f.profile(t, "farmer-1", entity.RoleFarmer)
	buyer := f.profile(t, "buyer-1", entity.RoleBuyer)
	f.product(t, "carrots", farmer.UserID, "0.90", 20)

	order, err := f.orders.CreateOrder(context.Background(), buyer, CreateOrderInput{ProductID: "carrots", Quantity: 4, DeliveryAddress: "x"})
	require.NoError(t, err)
	return order, buyer
}

func TestReconcilerCommitsAfterOutage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, buyer := placeOrder(t, f)
	reconciler := NewPaymentReconciler(f.orders, time.Minute)

	f.gateway.SetOutage(true)
	_, err := f.orders.SubmitPayment(ctx, buyer, order.ID, "tok_visa")
	require.Error(t, err)

	// Inside the grace period nothing is touched.
	report, err := reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report)

	f.clock.Advance(2 * time.Minute)
	report, err = reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pending)

	f.gateway.SetOutage(false)
	f.clock.Advance(2 * time.Minute)
	report, err = reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Committed: 1}, report)

	stored, err := f.repos.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentCompleted, stored.PaymentStatus)
	assert.Equal(t, entity.OrderConfirmed, stored.Status)
	assert.Equal(t, 1, f.gateway.Charges())

	f.clock.Advance(2 * time.Minute)
	report, err = reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report)
}

func TestReconcilerAbandonsAttemptOnCancelledOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, buyer := placeOrder(t, f)
	farmer := f.profile(t, "farmer-1", entity.RoleFarmer)

	f.gateway.SetOutage(true)
	_, err := f.orders.SubmitPayment(ctx, buyer, order.ID, "tok_visa")
	require.Error(t, err)

	_, err = f.orders.AdvanceStatus(ctx, farmer, order.ID, entity.OrderCancelled)
	require.NoError(t, err)

	f.gateway.SetOutage(false)
	f.clock.Advance(2 * time.Minute)
	report, err := NewPaymentReconciler(f.orders, time.Minute).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Abandoned: 1}, report)
	assert.Equal(t, 0, f.gateway.Charges())

	stored, err := f.repos.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, stored.Status)
	assert.Equal(t, entity.PaymentPending, stored.PaymentStatus)
	assert.Empty(t, f.pendingEvents(t, entity.EventOrderPaymentCompleted))

	attempt, err := f.repos.PaymentAttempts.GetByID(ctx, order.PaymentIdempotencyKey())
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptAbandoned, attempt.Status)
	assert.Contains(t, attempt.FailureReason, "cancelled")

	// Abandoned attempts are settled and never picked up again.
	f.clock.Advance(2 * time.Minute)
	report, err = NewPaymentReconciler(f.orders, time.Minute).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report)
}

func TestReconcilerCommitsAuthorizedAttemptWithoutCharging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, _ := placeOrder(t, f)

	attempt := entity.NewPaymentAttempt(order, "usd", "tok_visa", f.clock.Now())
	attempt.Status = entity.AttemptAuthorized
	attempt.Reference = "pi_live_123"
	require.NoError(t, f.repos.PaymentAttempts.Save(ctx, attempt))

	f.clock.Advance(time.Hour)
	report, err := NewPaymentReconciler(f.orders, time.Minute).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed)
	assert.Equal(t, 0, f.gateway.Charges())

	stored, err := f.repos.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_live_123", stored.PaymentReference)

	closed, err := f.repos.PaymentAttempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptCommitted, closed.Status)
}

func TestReconcilerRecordsDecline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, _ := placeOrder(t, f)

	attempt := entity.NewPaymentAttempt(order, "usd", "tok_decline_expired_card", f.clock.Now())
	require.NoError(t, f.repos.PaymentAttempts.Save(ctx, attempt))

	f.clock.Advance(time.Hour)
	report, err := NewPaymentReconciler(f.orders, time.Minute).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Declined: 1}, report)

	stored, err := f.repos.PaymentAttempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptDeclined, stored.Status)
	assert.Equal(t, "expired_card", stored.FailureReason)
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewPaymentReconciler(f.orders, time.Minute).Run(ctx, 10*time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
