package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/internal/domain/service"
	"farmlink/internal/infrastructure/ratelimit"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
)

type OrderUseCase struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	attemptRepo repository.PaymentAttemptRepository
	gateway     service.PaymentGateway
	rateLimiter *ratelimit.RateLimiter
	currency    string
	timeout     time.Duration
	now         func() time.Time
}

type PaymentSettings struct {
	Currency string
	Timeout  time.Duration
}

func NewOrderUseCase(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	attemptRepo repository.PaymentAttemptRepository,
	gateway service.PaymentGateway,
	rateLimiter *ratelimit.RateLimiter,
	settings PaymentSettings,
) *OrderUseCase {
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Currency == "" {
		settings.Currency = "usd"
	}
	return &OrderUseCase{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		attemptRepo: attemptRepo,
		gateway:     gateway,
		rateLimiter: rateLimiter,
		currency:    settings.Currency,
		timeout:     settings.Timeout,
		now:         time.Now,
	}
}

type CreateOrderInput struct {
	ProductID       string
	Quantity        int
	DeliveryAddress string
	Notes           string
}

// CreateOrder reserves stock and records a pending order in one write.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, actor entity.Actor, input CreateOrderInput) (*entity.Order, error) {
	if !actor.IsBuyer() {
		return nil, errors.NotPermitted("Only buyers can place orders")
	}
	if input.Quantity <= 0 {
		return nil, errors.InvalidInput("Quantity must be at least 1")
	}
	address := strings.TrimSpace(input.DeliveryAddress)
	if address == "" {
		return nil, errors.InvalidInput("Delivery address is required")
	}

	product, err := uc.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product.FarmerID == actor.UserID {
		return nil, errors.InvalidInput("You cannot order your own product")
	}
	if product.Status == entity.ProductInactive {
		return nil, errors.InvalidInput("Product is not available for sale")
	}
	// Early answer only; the reservation below is what enforces it.
	if input.Quantity > product.Quantity {
		return nil, errors.InsufficientStock(input.Quantity, product.Quantity)
	}

	now := uc.now()
	order := entity.NewOrder(uuid.New().String(), actor.UserID, product, input.Quantity, address, strings.TrimSpace(input.Notes), now)

	event, err := entity.NewOutboxEvent(entity.EventOrderCreated, order.ID, []string{order.BuyerID, order.FarmerID},
		entity.OrderEventPayload{Order: order, ActorID: actor.UserID}, now)
	if err != nil {
		return nil, errors.Internal("Failed to build order event", err)
	}

	created, err := uc.orderRepo.CreateWithReservation(ctx, order, event)
	if err != nil {
		return nil, err
	}

	logger.Info("Order created: order=%s buyer=%s product=%s quantity=%d total=%s",
		created.ID, created.BuyerID, created.ProductID, created.Quantity, created.TotalPrice)
	return created, nil
}

// SubmitPayment charges the order total once. Paying an order whose payment
// already completed returns it unchanged without contacting the gateway.
func (uc *OrderUseCase) SubmitPayment(ctx context.Context, actor entity.Actor, orderID, paymentMethodToken string) (*entity.Order, error) {
	if !actor.IsBuyer() {
		return nil, errors.NotPermitted("Only the buyer can pay for an order")
	}
	token := strings.TrimSpace(paymentMethodToken)
	if token == "" {
		return nil, errors.InvalidInput("Payment method token is required")
	}

	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(actor.UserID, ratelimit.ActionSubmitPayment); !allowed {
			logger.Warn("SubmitPayment rate limited: user=%s wait=%v", actor.UserID, wait)
			return nil, errors.TooManyRequests("Too many payment attempts, please wait " + wait.Round(time.Second).String())
		}
	}

	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID {
		return nil, errors.NotPermitted("Only the buyer who placed this order can pay for it")
	}
	if order.PaymentStatus == entity.PaymentCompleted {
		logger.Info("Payment already completed, nothing to do: order=%s", order.ID)
		return order, nil
	}
	if entity.IsTerminal(order.Status) {
		return nil, errors.AlreadyTerminal(string(order.Status))
	}
	if order.PaymentStatus != entity.PaymentPending {
		return nil, errors.Conflict("Payment is " + string(order.PaymentStatus) + " and cannot be submitted")
	}

	attempt, err := uc.openAttempt(ctx, order, token)
	if err != nil {
		return nil, err
	}

	return uc.settle(ctx, order, attempt)
}

// openAttempt persists the attempt before the gateway is called, so a crash
// mid-call leaves a record the reconciler can replay.
func (uc *OrderUseCase) openAttempt(ctx context.Context, order *entity.Order, token string) (*entity.PaymentAttempt, error) {
	now := uc.now()

	attempt, err := uc.attemptRepo.GetByID(ctx, order.PaymentIdempotencyKey())
	switch {
	case errors.Is(err, errors.CodeNotFound):
		attempt = entity.NewPaymentAttempt(order, uc.currency, token, now)
	case err != nil:
		return nil, err
	case attempt.Status == entity.AttemptDeclined:
		attempt.Retry(token, now)
	default:
		// An unsettled attempt is replayed exactly as first sent; a new token
		// under the same key would be a different request.
		logger.Info("Resuming payment attempt: order=%s key=%s status=%s", order.ID, attempt.IdempotencyKey(), attempt.Status)
		return attempt, nil
	}

	if err := uc.attemptRepo.Save(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// settle drives an attempt to a final state: authorize when the outcome is
// unknown, then commit the ledger.
func (uc *OrderUseCase) settle(ctx context.Context, order *entity.Order, attempt *entity.PaymentAttempt) (*entity.Order, error) {
	if attempt.Status == entity.AttemptInitiated {
		if err := uc.authorize(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return uc.commit(ctx, order, attempt)
}

func (uc *OrderUseCase) authorize(ctx context.Context, attempt *entity.PaymentAttempt) error {
	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	result, err := uc.gateway.Authorize(callCtx, service.AuthorizeRequest{
		IdempotencyKey:     attempt.IdempotencyKey(),
		OrderID:            attempt.OrderID,
		Amount:             attempt.Amount,
		Currency:           attempt.Currency,
		PaymentMethodToken: attempt.PaymentMethodToken,
	})

	if decline, ok := service.AsDecline(err); ok {
		attempt.Status = entity.AttemptDeclined
		attempt.FailureReason = decline.Reason
		attempt.UpdatedAt = uc.now()
		if saveErr := uc.attemptRepo.Save(ctx, attempt); saveErr != nil {
			logger.Error("Failed to record declined attempt %s: %v", attempt.ID, saveErr)
		}
		logger.Warn("Payment declined: order=%s reason=%s", attempt.OrderID, decline.Reason)
		return errors.PaymentFailed(decline.Reason)
	}
	if err != nil {
		logger.Error("Payment gateway unavailable: order=%s key=%s: %v", attempt.OrderID, attempt.IdempotencyKey(), err)
		return errors.GatewayUnavailable("Payment gateway", err)
	}

	attempt.Status = entity.AttemptAuthorized
	attempt.Reference = result.Reference
	attempt.UpdatedAt = uc.now()
	if err := uc.attemptRepo.Save(ctx, attempt); err != nil {
		// The charge exists; committing the ledger matters more than this record.
		logger.Error("Failed to record authorized attempt %s: %v", attempt.ID, err)
	}
	logger.Info("Payment authorized: order=%s reference=%s", attempt.OrderID, result.Reference)
	return nil
}

func (uc *OrderUseCase) commit(ctx context.Context, order *entity.Order, attempt *entity.PaymentAttempt) (*entity.Order, error) {
	now := uc.now()

	paid := *order
	paid.ApplyPayment(attempt.Reference, now)
	event, err := entity.NewOutboxEvent(entity.EventOrderPaymentCompleted, order.ID, []string{order.BuyerID, order.FarmerID},
		entity.OrderEventPayload{Order: &paid, PreviousStatus: order.Status, ActorID: entity.SystemActor().UserID}, now)
	if err != nil {
		return nil, errors.Internal("Failed to build payment event", err)
	}

	updated, err := uc.orderRepo.CompletePayment(ctx, order.ID, attempt.Reference, now, event)
	if errors.Is(err, errors.CodeConflict) {
		current, getErr := uc.orderRepo.GetByID(ctx, order.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.PaymentStatus != entity.PaymentCompleted {
			return nil, err
		}
		updated = current
	} else if err != nil {
		logger.Error("Payment %s authorized but ledger update failed for order %s: %v", attempt.Reference, order.ID, err)
		return nil, errors.Internal("Payment was taken but not yet recorded; it will be confirmed automatically", err)
	} else {
		logger.LogOrderTransition(order.ID, entity.SystemActor().UserID, string(order.Status), string(updated.Status))
		if updated.Status == entity.OrderCancelled {
			logger.Warn("Payment %s recorded on cancelled order %s; refund required", attempt.Reference, order.ID)
		}
	}

	attempt.Status = entity.AttemptCommitted
	attempt.UpdatedAt = now
	if err := uc.attemptRepo.Save(ctx, attempt); err != nil {
		logger.Error("Failed to mark attempt %s committed: %v", attempt.ID, err)
	}
	return updated, nil
}

// AdvanceStatus applies one edge of the order lifecycle on behalf of actor.
func (uc *OrderUseCase) AdvanceStatus(ctx context.Context, actor entity.Actor, orderID string, target entity.OrderStatus) (*entity.Order, error) {
	if !target.Valid() {
		return nil, errors.InvalidInput("Unknown order status " + string(target))
	}

	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParticipant(actor.UserID) {
		return nil, errors.NotPermitted("You are not part of this order")
	}

	if _, err := entity.CheckTransition(order, actor, target); err != nil {
		return nil, err
	}

	now := uc.now()
	next := *order
	next.Status = target
	next.UpdatedAt = now
	event, err := entity.NewOutboxEvent(entity.EventOrderStatusChanged, order.ID, []string{order.BuyerID, order.FarmerID},
		entity.OrderEventPayload{Order: &next, PreviousStatus: order.Status, ActorID: actor.UserID}, now)
	if err != nil {
		return nil, errors.Internal("Failed to build status event", err)
	}

	updated, err := uc.orderRepo.Transition(ctx, order.ID, order.Status, target, target == entity.OrderCancelled, now, event)
	if err != nil {
		return nil, err
	}

	logger.LogOrderTransition(order.ID, actor.UserID, string(order.Status), string(updated.Status))
	return updated, nil
}

func (uc *OrderUseCase) GetOrder(ctx context.Context, actor entity.Actor, orderID string) (*entity.Order, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParticipant(actor.UserID) {
		return nil, errors.NotFound("Order", nil)
	}
	return order, nil
}

// ListOrders shows buyers what they bought and farmers what was bought from them.
func (uc *OrderUseCase) ListOrders(ctx context.Context, actor entity.Actor, status entity.OrderStatus, page, limit int) ([]*entity.Order, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, errors.InvalidInput("Unknown order status " + string(status))
	}
	offset := (page - 1) * limit

	switch actor.Role {
	case entity.RoleBuyer:
		return uc.orderRepo.ListByBuyer(ctx, actor.UserID, status, limit, offset)
	case entity.RoleFarmer:
		return uc.orderRepo.ListByFarmer(ctx, actor.UserID, status, limit, offset)
	}
	return nil, 0, errors.NotPermitted("Only buyers and farmers have orders")
}
