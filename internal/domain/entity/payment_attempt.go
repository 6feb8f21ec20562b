package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentAttemptStatus string

const (
	// AttemptInitiated: recorded, gateway outcome unknown.
	AttemptInitiated PaymentAttemptStatus = "initiated"
	// AttemptAuthorized: gateway charged, ledger not yet updated.
	AttemptAuthorized PaymentAttemptStatus = "authorized"
	AttemptDeclined   PaymentAttemptStatus = "declined"
	AttemptCommitted  PaymentAttemptStatus = "committed"
	// AttemptAbandoned: the order ended before the gateway confirmed a charge.
	AttemptAbandoned PaymentAttemptStatus = "abandoned"
)

// PaymentAttempt ID is the order's idempotency key, so there is at most one
// per order and replays reuse it.
type PaymentAttempt struct {
	ID                 string               `json:"id"`
	OrderID            string               `json:"order_id"`
	BuyerID            string               `json:"buyer_id"`
	Amount             decimal.Decimal      `json:"amount"`
	Currency           string               `json:"currency"`
	PaymentMethodToken string               `json:"-"`
	Status             PaymentAttemptStatus `json:"status"`
	Retries            int                  `json:"retries"`
	Reference          string               `json:"reference,omitempty"`
	FailureReason      string               `json:"failure_reason,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// Unsettled attempts are the ones the reconciler has to drive to a final state.
func (a *PaymentAttempt) Unsettled() bool {
	return a.Status == AttemptInitiated || a.Status == AttemptAuthorized
}

func NewPaymentAttempt(order *Order, currency, token string, now time.Time) *PaymentAttempt {
	return &PaymentAttempt{
		ID:                 order.PaymentIdempotencyKey(),
		OrderID:            order.ID,
		BuyerID:            order.BuyerID,
		Amount:             order.TotalPrice,
		Currency:           currency,
		PaymentMethodToken: token,
		Status:             AttemptInitiated,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// IdempotencyKey is what the gateway sees. It only changes after a decline,
// since a declined charge took no money and the buyer may try another card.
func (a *PaymentAttempt) IdempotencyKey() string {
	if a.Retries == 0 {
		return a.ID
	}
	return fmt.Sprintf("%s-r%d", a.ID, a.Retries)
}

// Abandon closes an attempt that must no longer reach the gateway.
func (a *PaymentAttempt) Abandon(reason string, now time.Time) {
	a.Status = AttemptAbandoned
	a.FailureReason = reason
	a.UpdatedAt = now
}

// Retry reopens a declined attempt with a new payment method.
func (a *PaymentAttempt) Retry(token string, now time.Time) {
	a.Retries++
	a.PaymentMethodToken = token
	a.Status = AttemptInitiated
	a.FailureReason = ""
	a.UpdatedAt = now
}
