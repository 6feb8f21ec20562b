package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductSold     ProductStatus = "sold"
	ProductInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductSold, ProductInactive:
		return true
	}
	return false
}

type Product struct {
	ID          string          `json:"id"`
	FarmerID    string          `json:"farmer_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url,omitempty"`
	Status      ProductStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Reserve takes quantity units out of stock. Returns false and leaves the
// product untouched when fewer than quantity units are available.
func (p *Product) Reserve(quantity int) bool {
	if quantity <= 0 || p.Quantity < quantity {
		return false
	}
	p.Quantity -= quantity
	if p.Quantity == 0 {
		p.Status = ProductSold
	}
	return true
}

// Release puts quantity units back, reactivating a product that sold out.
func (p *Product) Release(quantity int) {
	p.Quantity += quantity
	if p.Status == ProductSold && p.Quantity > 0 {
		p.Status = ProductActive
	}
}
