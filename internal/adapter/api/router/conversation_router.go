package router

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/handler"
	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/infrastructure/ratelimit"
)

func SetupConversationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	conversationHandler := handler.GetConversationHandler()

	conversations := memberGroup(e, "/v1/conversations", authMiddleware, limiter)
	conversations.GET("", conversationHandler.GetConversations)
	conversations.GET("/:userId/messages", conversationHandler.GetThread)
	conversations.POST("/:userId/read", conversationHandler.MarkThreadRead)

	messages := memberGroup(e, "/v1/messages", authMiddleware, limiter)
	messages.POST("", conversationHandler.SendMessage)
	messages.GET("/unread-count", conversationHandler.CountUnread)
}
