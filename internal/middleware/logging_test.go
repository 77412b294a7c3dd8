package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   echo.HandlerFunc
		wantLevel string
		wantCode  int
	}{
		{
			name:      "success",
			handler:   func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
			wantLevel: "INFO",
			wantCode:  http.StatusOK,
		},
		{
			name:      "client error",
			handler:   func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden, "nope") },
			wantLevel: "WARN",
			wantCode:  http.StatusForbidden,
		},
		{
			name:      "upstream failure",
			handler:   func(c echo.Context) error { return c.String(http.StatusBadGateway, "bad gateway") },
			wantLevel: "ERROR",
			wantCode:  http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			e := echo.New()
			e.Use(RequestLogger(logger))
			e.GET("/*", tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/https://github.com/o/r/tags", http.NoBody)
			req.Host = "mirror.example.com"
			req.Header.Set("User-Agent", "git/2.45.0")
			e.ServeHTTP(httptest.NewRecorder(), req)

			var record map[string]any
			if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
				t.Fatalf("unmarshal log record %q: %v", buf.String(), err)
			}
			if record["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %q", record["level"], tt.wantLevel)
			}
			if got, _ := record["status"].(float64); int(got) != tt.wantCode {
				t.Errorf("status = %v, want %d", record["status"], tt.wantCode)
			}
			if record["host"] != "mirror.example.com" {
				t.Errorf("host = %v, want %q", record["host"], "mirror.example.com")
			}
			if record["user_agent"] != "git/2.45.0" {
				t.Errorf("user_agent = %v, want %q", record["user_agent"], "git/2.45.0")
			}
		})
	}
}
