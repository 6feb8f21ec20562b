package router

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/handler"
	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter, wsHandler *handler.WebSocketHandler) {
	SetupHealthRouter(e)
	SetupProfileRouter(e, authMiddleware, limiter)
	SetupProductRouter(e, authMiddleware, limiter)
	SetupOrderRouter(e, authMiddleware, limiter)
	SetupConversationRouter(e, authMiddleware, limiter)
	SetupNotificationRouter(e, authMiddleware, limiter)
	SetupWebSocketRouter(e, authMiddleware, wsHandler)
}
