package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"farmlink/internal/domain/entity"
)

// Sink receives every relayed event in addition to the bus.
type Sink interface {
	Publish(ctx context.Context, event *entity.OutboxEvent) error
	Close() error
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards marketplace events to a topic for consumers outside
// this service. Messages are keyed by aggregate id so one order's events stay
// in one partition.
type KafkaPublisher struct {
	writer  kafkaMessageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}

	return &KafkaPublisher{
		writer:  writer,
		timeout: 5 * time.Second,
	}
}

type kafkaEnvelope struct {
	ID          string           `json:"id"`
	Type        entity.EventType `json:"type"`
	AggregateID string           `json:"aggregate_id"`
	Recipients  []string         `json:"recipients"`
	Payload     json.RawMessage  `json:"payload"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *entity.OutboxEvent) error {
	value, err := json.Marshal(kafkaEnvelope{
		ID:          event.ID,
		Type:        event.Type,
		AggregateID: event.AggregateID,
		Recipients:  event.Recipients,
		Payload:     event.Payload,
		CreatedAt:   event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	message := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write %s event to kafka: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
