package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

type firestoreOutboxRepository struct {
	client *firestore.Client
}

func NewFirestoreOutboxRepository(client *firestore.Client) repository.OutboxRepository {
	return &firestoreOutboxRepository{
		client: client,
	}
}

func (r *firestoreOutboxRepository) PullPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	query := r.client.Collection(outboxCollection).
		Where("status", "==", string(entity.OutboxPending)).
		OrderBy("createdAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var events []*entity.OutboxEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate outbox", err)
		}
		var d outboxDocument
		if err := doc.DataTo(&d); err != nil {
			return nil, errors.Internal("Failed to parse outbox event", err)
		}
		events = append(events, d.toEntity())
	}
	return events, nil
}

func (r *firestoreOutboxRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.client.Collection(outboxCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(entity.OutboxSent)},
		{Path: "sentAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Outbox event", err)
		}
		return errors.Internal("Failed to mark outbox event sent", err)
	}
	return nil
}

func (r *firestoreOutboxRepository) MarkFailed(ctx context.Context, id, reason string, maxAttempts int) error {
	ref := r.client.Collection(outboxCollection).Doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var d outboxDocument
		if err := snap.DataTo(&d); err != nil {
			return err
		}

		d.Attempts++
		updates := []firestore.Update{
			{Path: "attempts", Value: d.Attempts},
			{Path: "lastError", Value: reason},
		}
		if d.Attempts >= maxAttempts {
			updates = append(updates, firestore.Update{Path: "status", Value: string(entity.OutboxFailed)})
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Outbox event", err)
		}
		return errors.Internal("Failed to mark outbox event failed", err)
	}
	return nil
}
