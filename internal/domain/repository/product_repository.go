package repository

import (
	"context"

	"farmlink/internal/domain/entity"
)

type ProductFilter struct {
	FarmerID string
	Category string
	Status   entity.ProductStatus
	// Search matches name case-insensitively.
	Search string
}

type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	Update(ctx context.Context, product *entity.Product) error
	List(ctx context.Context, filter ProductFilter, limit, offset int) ([]*entity.Product, int64, error)
}
