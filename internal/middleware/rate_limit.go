package middleware

import (
	"log"
	"net/http"
	"time"

	"chainvoice/internal/caching"
	"chainvoice/internal/common"

	"github.com/labstack/echo/v4"
)

// RateLimitMiddleware throttles requests per authenticated wallet, falling
// back to the client IP for unauthenticated routes. Counters live in Redis so
// the limit holds across replicas.
func RateLimitMiddleware(cacheSvc caching.CacheService, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			key := c.RealIP()
			if wallet, ok := common.GetCreatorWalletFromContext(ctx); ok {
				key = wallet
			}

			limited, err := cacheSvc.IsRateLimited(ctx, key, limit, window)
			if err != nil {
				// Rate limiting is best effort; an unreachable Redis must
				// not take the API down
				log.Printf("Rate limit check failed for %s: %v", key, err)
				return next(c)
			}
			if limited {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			}

			if err := cacheSvc.IncrementRateLimit(ctx, key, window); err != nil {
				log.Printf("Rate limit increment failed for %s: %v", key, err)
			}

			return next(c)
		}
	}
}
