package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"farmlink/pkg/logger"
)

var ErrSandboxUnavailable = errors.New("sandbox gateway unavailable")

// SandboxPaymentService is a deterministic gateway for development and tests.
// Tokens starting with tok_decline are refused, tokens starting with
// tok_unavailable fail as if the network dropped, everything else is charged.
// Outcomes are remembered per idempotency key, like a real gateway.
type SandboxPaymentService struct {
	mu       sync.Mutex
	outcomes map[string]sandboxOutcome
	outage   bool
	charges  int
}

type sandboxOutcome struct {
	result  *AuthorizeResult
	decline *DeclineError
}

func NewSandboxPaymentService() *SandboxPaymentService {
	return &SandboxPaymentService{
		outcomes: make(map[string]sandboxOutcome),
	}
}

func (s *SandboxPaymentService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outage || strings.HasPrefix(req.PaymentMethodToken, "tok_unavailable") {
		logger.Warn("Sandbox gateway unavailable: order=%s key=%s", req.OrderID, req.IdempotencyKey)
		return nil, ErrSandboxUnavailable
	}

	if outcome, ok := s.outcomes[req.IdempotencyKey]; ok {
		logger.Debug("Sandbox replaying outcome for key=%s", req.IdempotencyKey)
		if outcome.decline != nil {
			return nil, outcome.decline
		}
		return outcome.result, nil
	}

	if strings.HasPrefix(req.PaymentMethodToken, "tok_decline") {
		reason := strings.TrimPrefix(strings.TrimPrefix(req.PaymentMethodToken, "tok_decline"), "_")
		if reason == "" {
			reason = "card_declined"
		}
		decline := &DeclineError{Reason: reason}
		s.outcomes[req.IdempotencyKey] = sandboxOutcome{decline: decline}
		return nil, decline
	}

	result := &AuthorizeResult{Reference: "pi_sandbox_" + req.IdempotencyKey}
	s.outcomes[req.IdempotencyKey] = sandboxOutcome{result: result}
	s.charges++
	logger.Info("Sandbox payment authorized: order=%s amount=%s %s", req.OrderID, req.Amount, req.Currency)
	return result, nil
}

// SetOutage makes every call fail until it is switched off again.
func (s *SandboxPaymentService) SetOutage(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outage = down
}

// Charges counts distinct successful charges.
func (s *SandboxPaymentService) Charges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charges
}
