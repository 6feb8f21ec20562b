package repository

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
)

type firestoreProductRepository struct {
	client *firestore.Client
}

func NewFirestoreProductRepository(client *firestore.Client) repository.ProductRepository {
	return &firestoreProductRepository{
		client: client,
	}
}

func (r *firestoreProductRepository) Create(ctx context.Context, product *entity.Product) error {
	_, err := r.client.Collection(productsCollection).Doc(product.ID).Create(ctx, toProductDocument(product))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Product already exists")
		}
		return errors.Internal("Failed to create product", err)
	}
	return nil
}

func (r *firestoreProductRepository) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	doc, err := r.client.Collection(productsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Product", err)
		}
		return nil, errors.Internal("Failed to get product", err)
	}
	return decodeProduct(doc)
}

func (r *firestoreProductRepository) Update(ctx context.Context, product *entity.Product) error {
	ref := r.client.Collection(productsCollection).Doc(product.ID)

	// Set would silently create a missing product, so check it first.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, toProductDocument(product))
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Product", err)
		}
		return errors.Internal("Failed to update product", err)
	}
	return nil
}

func (r *firestoreProductRepository) List(ctx context.Context, filter repository.ProductFilter, limit, offset int) ([]*entity.Product, int64, error) {
	query := r.client.Collection(productsCollection).Query

	if filter.FarmerID != "" {
		query = query.Where("farmerId", "==", filter.FarmerID)
	}
	if filter.Category != "" {
		query = query.Where("category", "==", filter.Category)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	// Firestore has no substring match, so search filters client side.
	if search := lower(filter.Search); search != "" {
		docs, err := query.Documents(ctx).GetAll()
		if err != nil {
			return nil, 0, errors.Internal("Failed to search products", err)
		}
		var matched []*entity.Product
		for _, doc := range docs {
			product, err := decodeProduct(doc)
			if err != nil {
				return nil, 0, err
			}
			if strings.Contains(lower(product.Name), search) {
				matched = append(matched, product)
			}
		}
		return page(matched, limit, offset), int64(len(matched)), nil
	}

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count products", err)
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

	products := []*entity.Product{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate products", err)
		}
		product, err := decodeProduct(doc)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}

	return products, total, nil
}

func decodeProduct(doc *firestore.DocumentSnapshot) (*entity.Product, error) {
	var d productDocument
	if err := doc.DataTo(&d); err != nil {
		return nil, errors.Internal("Failed to parse product data", err)
	}
	product, err := d.toEntity()
	if err != nil {
		return nil, errors.Internal("Failed to parse product price", err)
	}
	return product, nil
}
