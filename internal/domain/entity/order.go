package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	// PaymentFailed and PaymentRefunded are only ever set outside the lifecycle.
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Order struct {
	ID               string          `json:"id"`
	BuyerID          string          `json:"buyer_id"`
	ProductID        string          `json:"product_id"`
	FarmerID         string          `json:"farmer_id"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	DeliveryAddress  string          `json:"delivery_address"`
	Notes            string          `json:"notes,omitempty"`
	Status           OrderStatus     `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewOrder snapshots the product price; TotalPrice is never recomputed afterwards.
func NewOrder(id, buyerID string, product *Product, quantity int, deliveryAddress, notes string, now time.Time) *Order {
	return &Order{
		ID:              id,
		BuyerID:         buyerID,
		ProductID:       product.ID,
		FarmerID:        product.FarmerID,
		Quantity:        quantity,
		UnitPrice:       product.Price,
		TotalPrice:      product.Price.Mul(decimal.NewFromInt(int64(quantity))),
		DeliveryAddress: deliveryAddress,
		Notes:           notes,
		Status:          OrderPending,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// PaymentIdempotencyKey is stable per order so a resubmission can never charge twice.
func (o *Order) PaymentIdempotencyKey() string {
	return "order-" + o.ID
}

func (o *Order) IsParticipant(userID string) bool {
	return o.BuyerID == userID || o.FarmerID == userID
}

// Counterparty returns the other side of the order from userID's perspective.
func (o *Order) Counterparty(userID string) string {
	if o.BuyerID == userID {
		return o.FarmerID
	}
	return o.BuyerID
}

// ApplyPayment records a gateway reference and advances a pending order to confirmed.
// Callers must have checked PaymentStatus is still pending.
func (o *Order) ApplyPayment(reference string, now time.Time) {
	o.PaymentStatus = PaymentCompleted
	o.PaymentReference = reference
	if o.Status == OrderPending {
		o.Status = OrderConfirmed
	}
	o.UpdatedAt = now
}
