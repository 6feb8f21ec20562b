package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"farmlink/internal/infrastructure/ratelimit"
	"farmlink/pkg/errors"
	"farmlink/pkg/logger"
	"farmlink/pkg/response"
)

// RateLimit throttles requests per authenticated user, or per client IP
// before authentication.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := UIDFrom(c)
			if key == "" {
				key = "ip:" + c.RealIP()
			}

			allowed, wait := limiter.Allow(key, action)
			if !allowed {
				retryAfter := int(math.Ceil(wait.Seconds()))
				logger.Warn("RATE LIMIT: %s blocked on %s %s (retry in %ds)", key, c.Request().Method, c.Path(), retryAfter)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded, retry in "+strconv.Itoa(retryAfter)+"s"))
			}

			return next(c)
		}
	}
}
