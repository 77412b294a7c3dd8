package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"gh-proxy-go/internal/config"
	"gh-proxy-go/internal/metrics"
)

// proxyMethods are forwarded upstream. POST carries git smart-HTTP uploads.
var proxyMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}

	e.Match(proxyMethods, "/*", proxy.Handle)
	e.OPTIONS("/*", proxy.Preflight)
}
