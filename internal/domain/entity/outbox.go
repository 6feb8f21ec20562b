package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventOrderCreated          EventType = "order.created"
	EventOrderStatusChanged    EventType = "order.status_changed"
	EventOrderPaymentCompleted EventType = "order.payment_completed"
	EventMessageSent           EventType = "message.sent"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxEvent is written in the same storage transaction as the state change it
// describes, and relayed to subscribers afterwards.
type OutboxEvent struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Recipients  []string        `json:"recipients"`
	Payload     json.RawMessage `json:"payload"`
	Status      OutboxStatus    `json:"status"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
}

type OrderEventPayload struct {
	Order          *Order      `json:"order"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	ActorID        string      `json:"actor_id"`
}

type MessageEventPayload struct {
	Message *Message `json:"message"`
}

func NewOutboxEvent(eventType EventType, aggregateID string, recipients []string, payload interface{}, now time.Time) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &OutboxEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		AggregateID: aggregateID,
		Recipients:  recipients,
		Payload:     data,
		Status:      OutboxPending,
		CreatedAt:   now,
	}, nil
}

func (e *OutboxEvent) OrderPayload() (*OrderEventPayload, error) {
	var p OrderEventPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	if p.Order == nil {
		return nil, fmt.Errorf("%s event %s has no order", e.Type, e.ID)
	}
	return &p, nil
}

func (e *OutboxEvent) MessagePayload() (*MessageEventPayload, error) {
	var p MessageEventPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	if p.Message == nil {
		return nil, fmt.Errorf("%s event %s has no message", e.Type, e.ID)
	}
	return &p, nil
}
