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

type firestoreOrderRepository struct {
	client *firestore.Client
}

func NewFirestoreOrderRepository(client *firestore.Client) repository.OrderRepository {
	return &firestoreOrderRepository{
		client: client,
	}
}

func (r *firestoreOrderRepository) CreateWithReservation(ctx context.Context, order *entity.Order, event *entity.OutboxEvent) (*entity.Order, error) {
	productRef := r.client.Collection(productsCollection).Doc(order.ProductID)
	orderRef := r.client.Collection(ordersCollection).Doc(order.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(productRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Product", err)
			}
			return err
		}

		product, err := decodeProduct(snap)
		if err != nil {
			return err
		}

		available := product.Quantity
		if !product.Reserve(order.Quantity) {
			return errors.InsufficientStock(order.Quantity, available)
		}
		product.UpdatedAt = order.CreatedAt

		if err := tx.Set(productRef, toProductDocument(product)); err != nil {
			return err
		}
		if err := tx.Create(orderRef, toOrderDocument(order)); err != nil {
			return err
		}
		return r.enqueue(tx, event)
	})
	if err != nil {
		return nil, wrapTxError("Failed to create order", err)
	}

	created := *order
	return &created, nil
}

func (r *firestoreOrderRepository) Transition(ctx context.Context, id string, from, to entity.OrderStatus, restock bool, at time.Time, event *entity.OutboxEvent) (*entity.Order, error) {
	orderRef := r.client.Collection(ordersCollection).Doc(id)
	var updated *entity.Order

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Order", err)
			}
			return err
		}
		order, err := decodeOrder(snap)
		if err != nil {
			return err
		}
		if order.Status != from {
			return errors.Conflict("Order status changed to " + string(order.Status) + " concurrently")
		}

		// Firestore requires every read before the first write.
		var product *entity.Product
		productRef := r.client.Collection(productsCollection).Doc(order.ProductID)
		if restock {
			psnap, err := tx.Get(productRef)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if err == nil {
				if product, err = decodeProduct(psnap); err != nil {
					return err
				}
			}
		}

		order.Status = to
		order.UpdatedAt = at
		if err := tx.Set(orderRef, toOrderDocument(order)); err != nil {
			return err
		}

		if product != nil {
			product.Release(order.Quantity)
			product.UpdatedAt = at
			if err := tx.Set(productRef, toProductDocument(product)); err != nil {
				return err
			}
		}

		updated = order
		return r.enqueue(tx, event)
	})
	if err != nil {
		return nil, wrapTxError("Failed to update order status", err)
	}

	return updated, nil
}

func (r *firestoreOrderRepository) CompletePayment(ctx context.Context, id, reference string, at time.Time, event *entity.OutboxEvent) (*entity.Order, error) {
	orderRef := r.client.Collection(ordersCollection).Doc(id)
	var updated *entity.Order

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Order", err)
			}
			return err
		}
		order, err := decodeOrder(snap)
		if err != nil {
			return err
		}
		if order.PaymentStatus != entity.PaymentPending {
			return errors.Conflict("Payment is already " + string(order.PaymentStatus))
		}

		order.ApplyPayment(reference, at)
		if err := tx.Set(orderRef, toOrderDocument(order)); err != nil {
			return err
		}

		updated = order
		return r.enqueue(tx, event)
	})
	if err != nil {
		return nil, wrapTxError("Failed to record payment", err)
	}

	return updated, nil
}

func (r *firestoreOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	doc, err := r.client.Collection(ordersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Order", err)
		}
		return nil, errors.Internal("Failed to get order", err)
	}
	return decodeOrder(doc)
}

func (r *firestoreOrderRepository) ListByBuyer(ctx context.Context, buyerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	return r.list(ctx, "buyerId", buyerID, status, limit, offset)
}

func (r *firestoreOrderRepository) ListByFarmer(ctx context.Context, farmerID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	return r.list(ctx, "farmerId", farmerID, status, limit, offset)
}

func (r *firestoreOrderRepository) list(ctx context.Context, field, userID string, orderStatus entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	query := r.client.Collection(ordersCollection).Where(field, "==", userID)
	if orderStatus != "" {
		query = query.Where("status", "==", string(orderStatus))
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count orders", err)
	}
	total := int64(len(allDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	orders := []*entity.Order{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate orders", err)
		}
		order, err := decodeOrder(doc)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}

	return orders, total, nil
}

func (r *firestoreOrderRepository) enqueue(tx *firestore.Transaction, event *entity.OutboxEvent) error {
	if event == nil {
		return nil
	}
	return tx.Create(r.client.Collection(outboxCollection).Doc(event.ID), toOutboxDocument(event))
}

func decodeOrder(doc *firestore.DocumentSnapshot) (*entity.Order, error) {
	var d orderDocument
	if err := doc.DataTo(&d); err != nil {
		return nil, errors.Internal("Failed to parse order data", err)
	}
	order, err := d.toEntity()
	if err != nil {
		return nil, errors.Internal("Failed to parse order amounts", err)
	}
	return order, nil
}
