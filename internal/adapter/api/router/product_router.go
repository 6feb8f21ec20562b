package router

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/handler"
	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/infrastructure/ratelimit"
)

func SetupProductRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	productHandler := handler.GetProductHandler()

	products := memberGroup(e, "/v1/products", authMiddleware, limiter)
	products.GET("", productHandler.ListProducts)
	products.POST("", productHandler.CreateProduct)
	products.GET("/:id", productHandler.GetProduct)
	products.PUT("/:id", productHandler.UpdateProduct)
}
