package repository

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message, event *entity.OutboxEvent) error {
	messageRef := r.client.Collection(messagesCollection).Doc(message.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(messageRef, toMessageDocument(message)); err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		return tx.Create(r.client.Collection(outboxCollection).Doc(event.ID), toOutboxDocument(event))
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Message already exists")
		}
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) ListForParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Message, error) {
	query := r.client.Collection(messagesCollection).
		Where("participants", "array-contains", userID).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	messages, err := r.collect(ctx, query)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *firestoreMessageRepository) ListThread(ctx context.Context, a, b string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.client.Collection(messagesCollection).
		Where("threadKey", "==", threadKey(a, b)).
		OrderBy("createdAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}
	total := int64(len(allDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	messages, err := r.collect(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *firestoreMessageRepository) MarkThreadRead(ctx context.Context, viewerID, otherID string) (int, error) {
	query := r.client.Collection(messagesCollection).
		Where("senderId", "==", otherID).
		Where("receiverId", "==", viewerID).
		Where("read", "==", false)

	count := 0
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		count = 0
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := tx.Update(doc.Ref, []firestore.Update{{Path: "read", Value: true}}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Internal("Failed to mark messages as read", err)
	}
	return count, nil
}

func (r *firestoreMessageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	docs, err := r.client.Collection(messagesCollection).
		Where("receiverId", "==", userID).
		Where("read", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to count unread messages", err)
	}
	return len(docs), nil
}

func (r *firestoreMessageRepository) collect(ctx context.Context, query firestore.Query) ([]*entity.Message, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	messages := []*entity.Message{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}
		var d messageDocument
		if err := doc.DataTo(&d); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, d.toEntity())
	}

	// Firestore orders only by createdAt; settle equal timestamps by id.
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Newer(messages[j]) })
	return messages, nil
}
