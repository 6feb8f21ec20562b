package events

import (
	"context"
	"errors"
	"time"

	"farmlink/internal/domain/repository"
	"farmlink/pkg/logger"
)

const (
	DefaultRelayBatch  = 100
	DefaultMaxAttempts = 5
)

// Relay moves committed outbox events to the bus and any sinks. Delivery is
// at least once: an event is marked sent only after every consumer accepted it.
type Relay struct {
	outbox      repository.OutboxRepository
	bus         *Bus
	sinks       []Sink
	interval    time.Duration
	batch       int
	maxAttempts int
}

func NewRelay(outbox repository.OutboxRepository, bus *Bus, interval time.Duration, sinks ...Sink) *Relay {
	return &Relay{
		outbox:      outbox,
		bus:         bus,
		sinks:       sinks,
		interval:    interval,
		batch:       DefaultRelayBatch,
		maxAttempts: DefaultMaxAttempts,
	}
}

// Drain relays one batch and returns how many events were delivered.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	pending, err := r.outbox.PullPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		errs := []error{r.bus.Publish(ctx, event)}
		for _, sink := range r.sinks {
			errs = append(errs, sink.Publish(ctx, event))
		}

		if err := errors.Join(errs...); err != nil {
			logger.Warn("Relay failed to deliver %s %s (attempt %d): %v", event.Type, event.ID, event.Attempts+1, err)
			if markErr := r.outbox.MarkFailed(ctx, event.ID, err.Error(), r.maxAttempts); markErr != nil {
				logger.Error("Relay failed to record delivery failure for %s: %v", event.ID, markErr)
			}
			continue
		}

		if err := r.outbox.MarkSent(ctx, event.ID); err != nil {
			logger.Error("Relay failed to mark %s sent: %v", event.ID, err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Run drains on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	logger.Info("Outbox relay started, polling every %s", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Outbox relay drain failed: %v", err)
			} else if n > 0 {
				logger.Debug("Outbox relay delivered %d events", n)
			}
		case <-ctx.Done():
			logger.Info("Outbox relay stopped")
			return nil
		}
	}
}
