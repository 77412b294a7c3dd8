package middleware

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"gh-proxy-go/internal/config"
)

// corsMaxAge is how long, in seconds, browsers may cache a preflight result.
const corsMaxAge = 1728000

// CORS returns the cross-origin policy for proxied resources. Only origins
// whose host is in proxy.allowed_domains are reflected; with an empty list
// every origin is allowed.
func CORS(pc *config.ProxyConfig) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return originAllowed(pc, origin), nil
		},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodTrace, http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		ExposeHeaders: []string{"*"},
		MaxAge:        corsMaxAge,
	})
}

func originAllowed(pc *config.ProxyConfig, origin string) bool {
	if len(pc.AllowedDomains) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return pc.HostAllowed(u.Host)
}
