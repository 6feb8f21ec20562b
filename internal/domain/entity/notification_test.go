package entity

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationPayloadDecodesByTag(t *testing.T) {
	n := NewNotification("farmer-1", "New order", "You have a new order", NewOrderPayload{
		OrderID:    "o1",
		ProductID:  "p1",
		BuyerID:    "buyer-1",
		Quantity:   2,
		TotalPrice: decimal.RequireFromString("12.50"),
	})
	n.ID = "n1"
	assert.Equal(t, NotificationNewOrder, n.Type)

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded Notification
	require.NoError(t, json.Unmarshal(data, &decoded))

	payload, ok := decoded.Payload.(NewOrderPayload)
	require.True(t, ok, "payload decoded as %T", decoded.Payload)
	assert.Equal(t, "o1", payload.OrderID)
	assert.Equal(t, 2, payload.Quantity)
	assert.True(t, payload.TotalPrice.Equal(decimal.RequireFromString("12.5")))
}

func TestDecodeNotificationPayloadRejectsUnknownType(t *testing.T) {
	_, err := DecodeNotificationPayload("promo_blast", []byte(`{}`))
	assert.Error(t, err)
}
