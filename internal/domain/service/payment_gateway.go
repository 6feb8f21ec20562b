package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// AuthorizeRequest charges Amount once per IdempotencyKey. Replaying a key
// returns the first outcome without charging again.
type AuthorizeRequest struct {
	IdempotencyKey     string
	OrderID            string
	Amount             decimal.Decimal
	Currency           string
	PaymentMethodToken string
}

type AuthorizeResult struct {
	Reference string
}

// PaymentGateway returns *DeclineError when the charge was refused. Any other
// error means the outcome is unknown and the same request may be replayed.
type PaymentGateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
}

type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string {
	return "payment declined: " + e.Reason
}

func AsDecline(err error) (*DeclineError, bool) {
	var decline *DeclineError
	if errors.As(err, &decline) {
		return decline, true
	}
	return nil, false
}

// ErrPaymentProcessing means the gateway accepted the charge but has not settled it yet.
var ErrPaymentProcessing = errors.New("payment still processing")
