package router

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/infrastructure/ratelimit"
)

// memberGroup returns a group for callers with a session and a marketplace profile.
func memberGroup(e *echo.Echo, prefix string, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) *echo.Group {
	group := e.Group(prefix)
	group.Use(authMiddleware.Authenticate)
	if limiter != nil {
		group.Use(middleware.RateLimit(limiter, ratelimit.ActionAPI))
	}
	group.Use(authMiddleware.RequireProfile)
	return group
}
