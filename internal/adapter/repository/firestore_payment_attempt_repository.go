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

type firestorePaymentAttemptRepository struct {
	client *firestore.Client
}

func NewFirestorePaymentAttemptRepository(client *firestore.Client) repository.PaymentAttemptRepository {
	return &firestorePaymentAttemptRepository{
		client: client,
	}
}

func (r *firestorePaymentAttemptRepository) Save(ctx context.Context, attempt *entity.PaymentAttempt) error {
	_, err := r.client.Collection(paymentAttemptsCollection).Doc(attempt.ID).Set(ctx, toPaymentAttemptDocument(attempt))
	if err != nil {
		return errors.Internal("Failed to save payment attempt", err)
	}
	return nil
}

func (r *firestorePaymentAttemptRepository) GetByID(ctx context.Context, id string) (*entity.PaymentAttempt, error) {
	doc, err := r.client.Collection(paymentAttemptsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Payment attempt", err)
		}
		return nil, errors.Internal("Failed to get payment attempt", err)
	}
	return decodePaymentAttempt(doc)
}

func (r *firestorePaymentAttemptRepository) ListUnsettled(ctx context.Context, before time.Time, limit int) ([]*entity.PaymentAttempt, error) {
	query := r.client.Collection(paymentAttemptsCollection).
		Where("status", "in", []string{string(entity.AttemptInitiated), string(entity.AttemptAuthorized)}).
		Where("updatedAt", "<", before).
		OrderBy("updatedAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var attempts []*entity.PaymentAttempt
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate payment attempts", err)
		}
		attempt, err := decodePaymentAttempt(doc)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

func decodePaymentAttempt(doc *firestore.DocumentSnapshot) (*entity.PaymentAttempt, error) {
	var d paymentAttemptDocument
	if err := doc.DataTo(&d); err != nil {
		return nil, errors.Internal("Failed to parse payment attempt data", err)
	}
	attempt, err := d.toEntity()
	if err != nil {
		return nil, errors.Internal("Failed to parse payment attempt amount", err)
	}
	return attempt, nil
}
