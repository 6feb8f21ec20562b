package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeAuthorizeSucceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "order-o1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "1250", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "true", r.PostForm.Get("confirm"))
		assert.Equal(t, "pm_card_visa", r.PostForm.Get("payment_method"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","status":"succeeded"}`))
	}))
	defer server.Close()

	gw := NewStripePaymentService("sk_test", server.URL, 5*time.Second)
	res, err := gw.Authorize(context.Background(), AuthorizeRequest{
		IdempotencyKey:     "order-o1",
		OrderID:            "o1",
		Amount:             decimal.RequireFromString("12.50"),
		Currency:           "USD",
		PaymentMethodToken: "pm_card_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", res.Reference)
}

func TestStripeCardErrorIsDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
	}))
	defer server.Close()

	gw := NewStripePaymentService("sk_test", server.URL, 5*time.Second)
	_, err := gw.Authorize(context.Background(), AuthorizeRequest{IdempotencyKey: "k", Amount: decimal.NewFromInt(1), Currency: "usd"})

	decline, ok := AsDecline(err)
	require.True(t, ok)
	assert.Equal(t, "insufficient_funds", decline.Reason)
}

func TestStripeServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	gw := NewStripePaymentService("sk_test", server.URL, 5*time.Second)
	_, err := gw.Authorize(context.Background(), AuthorizeRequest{IdempotencyKey: "k", Amount: decimal.NewFromInt(1), Currency: "usd"})
	require.Error(t, err)
	_, ok := AsDecline(err)
	assert.False(t, ok)
}

func TestStripeProcessingRefetchesIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			assert.Equal(t, "/v1/payment_intents/pi_9", r.URL.Path)
			w.Write([]byte(`{"id":"pi_9","status":"succeeded"}`))
			return
		}
		w.Write([]byte(`{"id":"pi_9","status":"processing"}`))
	}))
	defer server.Close()

	gw := NewStripePaymentService("sk_test", server.URL, 5*time.Second)
	res, err := gw.Authorize(context.Background(), AuthorizeRequest{IdempotencyKey: "k", Amount: decimal.NewFromInt(1), Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "pi_9", res.Reference)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), MinorUnits(decimal.RequireFromString("19.99"), "usd"))
	assert.Equal(t, int64(30), MinorUnits(decimal.RequireFromString("0.3"), "eur"))
	assert.Equal(t, int64(500), MinorUnits(decimal.RequireFromString("500"), "JPY"))
}
