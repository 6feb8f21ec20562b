package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"farmlink/pkg/logger"
)

const defaultStripeBaseURL = "https://api.stripe.com"

// StripePaymentService charges through the Payment Intents API, confirming
// server side so the outcome is known when Authorize returns.
type StripePaymentService struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewStripePaymentService(secretKey, baseURL string, timeout time.Duration) *StripePaymentService {
	if baseURL == "" {
		baseURL = defaultStripeBaseURL
	}
	return &StripePaymentService{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}
}

type stripePaymentIntent struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

// Currencies Stripe expects in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// MinorUnits converts a decimal amount to the integer Stripe charges.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func (s *StripePaymentService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	logger.Info("Authorizing stripe payment: order=%s key=%s amount=%s %s", req.OrderID, req.IdempotencyKey, req.Amount, req.Currency)

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", MinorUnits(req.Amount, req.Currency)))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("payment_method", req.PaymentMethodToken)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	form.Set("metadata[order_id]", req.OrderID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	intent, err := s.do(httpReq)
	if err != nil {
		return nil, err
	}

	// A replayed key returns the cached first response, so fetch the live state.
	if intent.Status == "processing" {
		if intent, err = s.retrieve(ctx, intent.ID); err != nil {
			return nil, err
		}
	}

	switch intent.Status {
	case "succeeded", "requires_capture":
		logger.Info("Stripe payment authorized: order=%s intent=%s", req.OrderID, intent.ID)
		return &AuthorizeResult{Reference: intent.ID}, nil
	case "processing":
		return nil, ErrPaymentProcessing
	default:
		reason := intent.Status
		if e := intent.LastPaymentError; e != nil {
			reason = firstNonEmpty(e.DeclineCode, e.Code, e.Message, reason)
		}
		logger.Warn("Stripe payment declined: order=%s intent=%s reason=%s", req.OrderID, intent.ID, reason)
		return nil, &DeclineError{Reason: reason}
	}
}

func (s *StripePaymentService) retrieve(ctx context.Context, intentID string) (*stripePaymentIntent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return s.do(httpReq)
}

func (s *StripePaymentService) do(httpReq *http.Request) (*stripePaymentIntent, error) {
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var intent stripePaymentIntent
		if err := json.Unmarshal(body, &intent); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return &intent, nil
	}

	var apiErr stripeErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	if isDeclineStatus(resp.StatusCode) {
		return nil, &DeclineError{Reason: firstNonEmpty(apiErr.Error.DeclineCode, apiErr.Error.Code, apiErr.Error.Message, resp.Status)}
	}

	logger.Error("Stripe API error: status=%d body=%s", resp.StatusCode, string(body))
	return nil, fmt.Errorf("stripe API error: %s", resp.Status)
}

// 402 is a card error. Other 4xx responses reject the request itself, except
// auth, idempotency conflicts and throttling, which a later replay can get past.
func isDeclineStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
