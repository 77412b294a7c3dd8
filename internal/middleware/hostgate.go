package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"gh-proxy-go/internal/config"
)

// HostGate rejects requests whose Host header is not in proxy.allowed_domains
// by calling deny. The gate is a no-op when the list is empty. Requests for
// which skip returns true bypass it (health checks, metrics scrapes).
func HostGate(pc *config.ProxyConfig, logger *slog.Logger, deny echo.HandlerFunc, skip echomw.Skipper) echo.MiddlewareFunc {
	if skip == nil {
		skip = echomw.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(pc.AllowedDomains) == 0 {
			return next
		}
		return func(c echo.Context) error {
			if skip(c) || pc.HostAllowed(c.Request().Host) {
				return next(c)
			}
			logger.Warn("host not allowed",
				"host", c.Request().Host,
				"remote_ip", c.RealIP(),
			)
			return deny(c)
		}
	}
}
