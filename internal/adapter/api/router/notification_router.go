package router

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/handler"
	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/infrastructure/ratelimit"
)

func SetupNotificationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	notificationHandler := handler.GetNotificationHandler()

	notifications := memberGroup(e, "/v1/notifications", authMiddleware, limiter)
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.CountUnread)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
}
