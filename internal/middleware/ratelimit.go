package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"gh-proxy-go/internal/config"
)

// RateLimit limits each client to rl.RequestsPerSecond. Clients are keyed the
// way the error envelope reports them: CF-Connecting-IP, then the real IP.
func RateLimit(rl config.RateLimitConfig, logger *slog.Logger, skip echomw.Skipper) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(rl.RequestsPerSecond),
		Burst:     rl.Burst,
		ExpiresIn: 3 * time.Minute,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: skip,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if ip := c.Request().Header.Get("CF-Connecting-IP"); ip != "" {
				return ip, nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			logger.Warn("rate limit exceeded",
				"client", identifier,
				"path", c.Request().URL.Path,
			)
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}
