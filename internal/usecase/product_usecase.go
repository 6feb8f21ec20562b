package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
)

type ProductUseCase struct {
	productRepo repository.ProductRepository
	now         func() time.Time
}

func NewProductUseCase(productRepo repository.ProductRepository) *ProductUseCase {
	return &ProductUseCase{
		productRepo: productRepo,
		now:         time.Now,
	}
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Unit        string
	Category    string
	ImageURL    string
}

// UpdateProductInput leaves nil fields unchanged.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Unit        *string
	Category    *string
	ImageURL    *string
	Status      *entity.ProductStatus
}

func (uc *ProductUseCase) CreateProduct(ctx context.Context, actor entity.Actor, input CreateProductInput) (*entity.Product, error) {
	if !actor.IsFarmer() {
		return nil, errors.NotPermitted("Only farmers can list products")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.InvalidInput("Product name is required")
	}
	if !input.Price.IsPositive() {
		return nil, errors.InvalidInput("Price must be greater than zero")
	}
	if input.Quantity < 0 {
		return nil, errors.InvalidInput("Quantity cannot be negative")
	}

	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = "kg"
	}

	now := uc.now()
	product := &entity.Product{
		ID:          uuid.New().String(),
		FarmerID:    actor.UserID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Quantity:    input.Quantity,
		Unit:        unit,
		Category:    strings.ToLower(strings.TrimSpace(input.Category)),
		ImageURL:    input.ImageURL,
		Status:      entity.ProductActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.Quantity == 0 {
		product.Status = entity.ProductSold
	}

	if err := uc.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	logger.Info("Product created: id=%s farmer=%s price=%s quantity=%d", product.ID, product.FarmerID, product.Price, product.Quantity)
	return product, nil
}

func (uc *ProductUseCase) UpdateProduct(ctx context.Context, actor entity.Actor, id string, input UpdateProductInput) (*entity.Product, error) {
	product, err := uc.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.FarmerID != actor.UserID {
		return nil, errors.NotPermitted("You can only update your own products")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.InvalidInput("Product name is required")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		if !input.Price.IsPositive() {
			return nil, errors.InvalidInput("Price must be greater than zero")
		}
		product.Price = *input.Price
	}
	if input.Unit != nil && strings.TrimSpace(*input.Unit) != "" {
		product.Unit = strings.TrimSpace(*input.Unit)
	}
	if input.Category != nil {
		product.Category = strings.ToLower(strings.TrimSpace(*input.Category))
	}
	if input.ImageURL != nil {
		product.ImageURL = *input.ImageURL
	}
	if input.Status != nil {
		// sold follows stock; farmers only switch a listing on or off.
		switch *input.Status {
		case entity.ProductActive, entity.ProductInactive:
			product.Status = *input.Status
		default:
			return nil, errors.InvalidInput("Status must be active or inactive")
		}
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, errors.InvalidInput("Quantity cannot be negative")
		}
		product.Quantity = *input.Quantity
	}

	switch {
	case product.Quantity == 0 && product.Status == entity.ProductActive:
		product.Status = entity.ProductSold
	case product.Quantity > 0 && product.Status == entity.ProductSold:
		product.Status = entity.ProductActive
	}

	product.UpdatedAt = uc.now()
	if err := uc.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	logger.Info("Product updated: id=%s status=%s quantity=%d", product.ID, product.Status, product.Quantity)
	return product, nil
}

func (uc *ProductUseCase) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	return uc.productRepo.GetByID(ctx, id)
}

// ListProducts shows active listings unless the caller asks for a status,
// or lists a farmer's own catalog.
func (uc *ProductUseCase) ListProducts(ctx context.Context, filter repository.ProductFilter, page, limit int) ([]*entity.Product, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, errors.InvalidInput("Unknown product status " + string(filter.Status))
	}
	if filter.Status == "" && filter.FarmerID == "" {
		filter.Status = entity.ProductActive
	}
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	filter.Search = strings.TrimSpace(filter.Search)

	return uc.productRepo.List(ctx, filter, limit, (page-1)*limit)
}
