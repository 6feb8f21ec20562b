package router

import (
	"github.com/labstack/echo/v4"

	"farmlink/internal/adapter/api/handler"
	"farmlink/internal/adapter/api/middleware"
	"farmlink/internal/infrastructure/ratelimit"
)

func SetupProfileRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	profileHandler := handler.GetProfileHandler()

	// /v1/me is reachable before a profile exists so new users can onboard.
	me := e.Group("/v1/me")
	me.Use(authMiddleware.Authenticate)
	if limiter != nil {
		me.Use(middleware.RateLimit(limiter, ratelimit.ActionAPI))
	}
	me.GET("", profileHandler.GetMe)
	me.PUT("", profileHandler.UpdateMe)

	profiles := memberGroup(e, "/v1/profiles", authMiddleware, limiter)
	profiles.GET("/:id", profileHandler.GetProfile)
}
