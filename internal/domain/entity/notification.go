package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type NotificationType string

const (
	NotificationNewOrder         NotificationType = "new_order"
	NotificationOrderPlaced      NotificationType = "order_placed"
	NotificationOrderStatus      NotificationType = "order_status_update"
	NotificationPaymentCompleted NotificationType = "payment_completed"
	NotificationNewMessage       NotificationType = "new_message"
)

// NotificationPayload is a closed set: every variant is declared below and
// DecodeNotificationPayload knows how to rebuild each one from storage.
type NotificationPayload interface {
	NotificationType() NotificationType
}

type NewOrderPayload struct {
	OrderID    string          `json:"order_id"`
	ProductID  string          `json:"product_id"`
	BuyerID    string          `json:"buyer_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderPlacedPayload struct {
	OrderID    string          `json:"order_id"`
	ProductID  string          `json:"product_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderStatusPayload struct {
	OrderID string      `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

type PaymentCompletedPayload struct {
	OrderID   string          `json:"order_id"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

type NewMessagePayload struct {
	MessageID   string      `json:"message_id"`
	SenderID    string      `json:"sender_id"`
	MessageType MessageType `json:"message_type"`
	ProductID   string      `json:"product_id,omitempty"`
}

func (NewOrderPayload) NotificationType() NotificationType         { return NotificationNewOrder }
func (OrderPlacedPayload) NotificationType() NotificationType      { return NotificationOrderPlaced }
func (OrderStatusPayload) NotificationType() NotificationType      { return NotificationOrderStatus }
func (PaymentCompletedPayload) NotificationType() NotificationType { return NotificationPaymentCompleted }
func (NewMessagePayload) NotificationType() NotificationType       { return NotificationNewMessage }

type Notification struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Type      NotificationType    `json:"type"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Payload   NotificationPayload `json:"data"`
	Read      bool                `json:"read"`
	CreatedAt time.Time           `json:"created_at"`
}

func NewNotification(userID, title, message string, payload NotificationPayload) *Notification {
	return &Notification{
		UserID:  userID,
		Type:    payload.NotificationType(),
		Title:   title,
		Message: message,
		Payload: payload,
	}
}

func EncodeNotificationPayload(payload NotificationPayload) ([]byte, error) {
	return json.Marshal(payload)
}

func DecodeNotificationPayload(t NotificationType, data []byte) (NotificationPayload, error) {
	var (
		payload NotificationPayload
		err     error
	)

	switch t {
	case NotificationNewOrder:
		var p NewOrderPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationOrderPlaced:
		var p OrderPlacedPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationOrderStatus:
		var p OrderStatusPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationPaymentCompleted:
		var p PaymentCompletedPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationNewMessage:
		var p NewMessagePayload
		err = json.Unmarshal(data, &p)
		payload = p
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return payload, nil
}

// UnmarshalJSON rebuilds the typed payload from the type tag.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	aux := struct {
		*alias
		Payload json.RawMessage `json:"data"`
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		n.Payload = nil
		return nil
	}

	payload, err := DecodeNotificationPayload(n.Type, aux.Payload)
	if err != nil {
		return err
	}
	n.Payload = payload
	return nil
}
