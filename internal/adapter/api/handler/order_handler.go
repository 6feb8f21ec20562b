package handler

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/domain/entity"
	"farmlink/internal/usecase"
	"farmlink/pkg/errors"
	"farmlink/pkg/response"
	"farmlink/pkg/utils"
)

type OrderHandler struct {
	orderUseCase *usecase.OrderUseCase
}

func NewOrderHandler(orderUseCase *usecase.OrderUseCase) *OrderHandler {
	return &OrderHandler{
		orderUseCase: orderUseCase,
	}
}

type createOrderRequest struct {
	ProductID       string `json:"product_id" validate:"required"`
	Quantity        int    `json:"quantity"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=300"`
	Notes           string `json:"notes" validate:"max=1000"`
}

type submitPaymentRequest struct {
	PaymentMethodToken string `json:"payment_method_token" validate:"required"`
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.CreateOrder(c.Request().Context(), middleware.ActorFrom(c), usecase.CreateOrderInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return response.Error(c, errors.BadRequest("Order ID is required", nil))
	}

	order, err := h.orderUseCase.GetOrder(c.Request().Context(), middleware.ActorFrom(c), orderID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

// ListOrders returns the caller's purchases (buyer) or sales (farmer), optionally filtered by ?status=.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	orders, total, err := h.orderUseCase.ListOrders(c.Request().Context(), middleware.ActorFrom(c),
		entity.OrderStatus(c.QueryParam("status")), pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, orders, total, pagination.Page, pagination.PageSize)
}

func (h *OrderHandler) SubmitPayment(c echo.Context) error {
	var req submitPaymentRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.SubmitPayment(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), req.PaymentMethodToken)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

func (h *OrderHandler) AdvanceStatus(c echo.Context) error {
	var req advanceStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.AdvanceStatus(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), entity.OrderStatus(req.Status))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}
