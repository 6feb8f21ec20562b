package router

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/handler"
	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/infrastructure/ratelimit"
)

func SetupOrderRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	orderHandler := handler.GetOrderHandler()

	orders := memberGroup(e, "/v1/orders", authMiddleware, limiter)
	orders.GET("", orderHandler.ListOrders)
	orders.POST("", orderHandler.CreateOrder)
	orders.GET("/:id", orderHandler.GetOrder)
	orders.POST("/:id/payment", orderHandler.SubmitPayment)
	orders.POST("/:id/status", orderHandler.AdvanceStatus)
}
