package usecase

import (
	"context"
	"time"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
)

const reconcileBatch = 50

// PaymentReconciler finishes payment attempts whose outcome was never
// recorded, replaying them under the same idempotency key.
type PaymentReconciler struct {
	orders      *OrderUseCase
	orderRepo   repository.OrderRepository
	attemptRepo repository.PaymentAttemptRepository
	grace       time.Duration
}

type ReconcileReport struct {
	Committed int
	Declined  int
	Abandoned int
	Pending   int
}

func NewPaymentReconciler(orders *OrderUseCase, grace time.Duration) *PaymentReconciler {
	return &PaymentReconciler{
		orders:      orders,
		orderRepo:   orders.orderRepo,
		attemptRepo: orders.attemptRepo,
		grace:       grace,
	}
}

// Reconcile settles every attempt untouched for longer than the grace period.
func (r *PaymentReconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	attempts, err := r.attemptRepo.ListUnsettled(ctx, r.orders.now().Add(-r.grace), reconcileBatch)
	if err != nil {
		return report, err
	}

	for _, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		order, err := r.orderRepo.GetByID(ctx, attempt.OrderID)
		if err != nil {
			logger.Error("Reconcile: cannot load order %s for attempt %s: %v", attempt.OrderID, attempt.ID, err)
			report.Pending++
			continue
		}

		if order.PaymentStatus == entity.PaymentCompleted {
			attempt.Status = entity.AttemptCommitted
			attempt.UpdatedAt = r.orders.now()
			if err := r.attemptRepo.Save(ctx, attempt); err != nil {
				logger.Error("Reconcile: failed to close attempt %s: %v", attempt.ID, err)
			}
			report.Committed++
			continue
		}

		// A charge never confirmed is not started once the order has ended.
		// Authorized attempts still commit so the taken money is recorded.
		if attempt.Status == entity.AttemptInitiated && entity.IsTerminal(order.Status) {
			attempt.Abandon("order "+string(order.Status)+" before payment was confirmed", r.orders.now())
			if err := r.attemptRepo.Save(ctx, attempt); err != nil {
				logger.Error("Reconcile: failed to abandon attempt %s: %v", attempt.ID, err)
				report.Pending++
				continue
			}
			logger.Warn("Reconcile: abandoned attempt %s (key %s), order %s is %s", attempt.ID, attempt.IdempotencyKey(), order.ID, order.Status)
			report.Abandoned++
			continue
		}

		_, err = r.orders.settle(ctx, order, attempt)
		switch {
		case err == nil:
			logger.Info("Reconcile: payment committed for order %s", order.ID)
			report.Committed++
		case errors.Is(err, errors.CodePaymentFailed):
			report.Declined++
		default:
			logger.Warn("Reconcile: attempt %s still unsettled: %v", attempt.ID, err)
			report.Pending++
		}
	}

	return report, nil
}

// Run reconciles once immediately, then every interval until ctx is cancelled.
func (r *PaymentReconciler) Run(ctx context.Context, interval time.Duration) error {
	logger.Info("Payment reconciler started, interval %s", interval)

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			logger.Info("Payment reconciler stopped")
			return nil
		}
	}
}

func (r *PaymentReconciler) tick(ctx context.Context) {
	report, err := r.Reconcile(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("Payment reconcile failed: %v", err)
		return
	}
	if report.Committed+report.Declined+report.Abandoned+report.Pending > 0 {
		logger.Info("Payment reconcile: committed=%d declined=%d abandoned=%d pending=%d",
			report.Committed, report.Declined, report.Abandoned, report.Pending)
	}
}
