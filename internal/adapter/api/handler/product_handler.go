package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/domain/entity"
	"farmlink/internal/domain/repository"
	"farmlink/internal/usecase"
	"farmlink/pkg/errors"
	"farmlink/pkg/response"
	"farmlink/pkg/utils"
)

type ProductHandler struct {
	productUseCase *usecase.ProductUseCase
}

func NewProductHandler(productUseCase *usecase.ProductUseCase) *ProductHandler {
	return &ProductHandler{
		productUseCase: productUseCase,
	}
}

// Prices travel as strings so no float rounding happens on the way in.
type createProductRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Price       string `json:"price" validate:"required,decimal"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	Unit        string `json:"unit" validate:"max=20"`
	Category    string `json:"category" validate:"required,max=50"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

type updateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Price       *string `json:"price" validate:"omitempty,decimal"`
	Quantity    *int    `json:"quantity" validate:"omitempty,gte=0"`
	Unit        *string `json:"unit" validate:"omitempty,max=20"`
	Category    *string `json:"category" validate:"omitempty,max=50"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Status      *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return response.Error(c, errors.InvalidInput("Price is not a valid amount"))
	}

	product, err := h.productUseCase.CreateProduct(c.Request().Context(), middleware.ActorFrom(c), usecase.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, product)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	var req updateProductRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	input := usecase.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			return response.Error(c, errors.InvalidInput("Price is not a valid amount"))
		}
		input.Price = &price
	}
	if req.Status != nil {
		status := entity.ProductStatus(*req.Status)
		input.Status = &status
	}

	product, err := h.productUseCase.UpdateProduct(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, product)
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	product, err := h.productUseCase.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, product)
}

// ListProducts supports ?category=&farmer_id=&status=&search=&page=&limit=.
// farmer_id=me lists the caller's own catalog.
func (h *ProductHandler) ListProducts(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	filter := repository.ProductFilter{
		FarmerID: c.QueryParam("farmer_id"),
		Category: c.QueryParam("category"),
		Status:   entity.ProductStatus(c.QueryParam("status")),
		Search:   c.QueryParam("search"),
	}
	if filter.FarmerID == "me" {
		filter.FarmerID = middleware.ActorFrom(c).UserID
	}

	products, total, err := h.productUseCase.ListProducts(c.Request().Context(), filter, pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, products, total, pagination.Page, pagination.PageSize)
}
