package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// isoMillis is RFC 3339 in UTC with millisecond precision.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// ErrorBody is the JSON envelope returned for every failure the proxy itself
// produces. Upstream error responses are passed through instead.
type ErrorBody struct {
	Status    int    `json:"status"`
	Success   bool   `json:"success"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
}

// Forbidden answers a request from a host outside proxy.allowed_domains.
func Forbidden(c echo.Context) error {
	return respondError(c, http.StatusForbidden, "host not allowed")
}

func respondError(c echo.Context, status int, message string) error {
	req := c.Request()

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	body := ErrorBody{
		Status:    status,
		Success:   status >= 200 && status < 400,
		Path:      c.Scheme() + "://" + req.Host + requestURI(req),
		IP:        clientIP(c),
		Timestamp: time.Now().UTC().Format(isoMillis),
		RequestID: requestID,
		Message:   message,
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/json; charset=utf-8")
	return c.JSON(status, body)
}

func clientIP(c echo.Context) string {
	req := c.Request()
	if ip := req.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := req.Header.Get(echo.HeaderXForwardedFor); ip != "" {
		return ip
	}
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func requestURI(req *http.Request) string {
	if req.RequestURI != "" {
		return req.RequestURI
	}
	return req.URL.RequestURI()
}
