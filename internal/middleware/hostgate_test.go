package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"gh-proxy-go/internal/config"
)

func TestHostGate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deny := func(c echo.Context) error {
		return c.String(http.StatusForbidden, "denied")
	}
	skipHealth := func(c echo.Context) bool {
		return c.Request().URL.Path == "/healthz"
	}

	tests := []struct {
		name    string
		allowed []string
		host    string
		path    string
		want    int
	}{
		{"listed host", []string{"gh.example.com"}, "gh.example.com", "/x", http.StatusOK},
		{"listed host with port", []string{"gh.example.com"}, "gh.example.com:8000", "/x", http.StatusOK},
		{"unlisted host", []string{"gh.example.com"}, "mirror.evil.example", "/x", http.StatusForbidden},
		{"skipped path", []string{"gh.example.com"}, "10.0.0.7:8000", "/healthz", http.StatusOK},
		{"empty list disables gate", nil, "anything.example.org", "/x", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(HostGate(&config.ProxyConfig{AllowedDomains: tt.allowed}, logger, deny, skipHealth))
			e.GET("/*", func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
