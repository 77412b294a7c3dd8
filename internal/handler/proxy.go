package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"gh-proxy-go/internal/config"
	"gh-proxy-go/internal/github"
	"gh-proxy-go/internal/metrics"
	"gh-proxy-go/internal/model"
	"gh-proxy-go/internal/service"
)

// ProxyHandler dispatches embedded GitHub paths to the forwarder, the CDN
// mirror, or the static asset host.
type ProxyHandler struct {
	service *service.ForwardService
	cfg     *config.ProxyConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(svc *service.ForwardService, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		cfg:     &cfg.Proxy,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle resolves the GitHub URL embedded after the configured prefix and
// streams the result back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	if ghURL := c.QueryParam("gh_url"); ghURL != "" {
		location := "https://" + req.Host + h.cfg.Prefix + ghURL
		h.logger.Info("gh_url redirect", "location", location)
		return c.Redirect(http.StatusMovedPermanently, location)
	}

	path := github.NormalizeEmbeddedPath(embeddedPath(req, h.cfg.Prefix))
	kind := github.Classify(path)
	h.metrics.ObserveKind(kind.String())

	switch kind {
	case github.KindUnknown:
		return h.serveAsset(c, path)
	case github.KindBlob:
		if h.cfg.JSDelivrEnabled {
			location := github.JSDelivrURL(path, h.cfg.CDNBaseURL)
			h.logger.Info("jsdelivr redirect", "location", location)
			return c.Redirect(http.StatusFound, location)
		}
		path = github.BlobToRaw(path)
	}

	target, err := github.Parse(github.EnsureScheme(path))
	if err != nil {
		return h.mapError(c, err)
	}

	resp, err := h.service.Forward(&model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Target:        target,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return h.stream(c, resp)
}

// Preflight answers OPTIONS requests that the CORS middleware let through.
func (h *ProxyHandler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func (h *ProxyHandler) serveAsset(c echo.Context, path string) error {
	req := c.Request()
	resp, err := h.service.FetchAsset(&model.ProxyRequest{
		Ctx:    req.Context(),
		Method: http.MethodGet,
		Header: req.Header,
	}, path)
	if err != nil {
		return h.mapError(c, err)
	}
	return h.stream(c, resp)
}

// stream copies an upstream response to the client and closes its body.
func (h *ProxyHandler) stream(c echo.Context, resp *model.ProxyResponse) error {
	defer func() { _ = resp.Body.Close() }()

	h.logger.Debug("upstream response",
		"status", resp.StatusCode,
		"hops", resp.Hops,
		"path", c.Request().URL.Path,
	)

	dst := c.Response().Header()
	for key, vals := range resp.Header {
		// Keep the Vary: Origin added by the CORS middleware.
		if key != echo.HeaderVary {
			dst.Del(key)
		}
		for _, v := range vals {
			dst.Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (e.g. client disconnect, network error), the HTTP status
	// code has already been sent, so the client receives a truncated
	// response with the original status. We log the error for observability.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", c.Request().URL.Path,
		)
	}

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	switch {
	case errors.Is(err, github.ErrInvalidURL):
		h.logger.Warn("invalid url", "err", err, "path", path)
		return respondError(c, http.StatusNotFound, "invalid url")
	case errors.Is(err, service.ErrNoAssetURL):
		return respondError(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrInvalidRedirectTarget):
		h.logger.Error("invalid redirect target", "err", err, "path", path)
		return respondError(c, http.StatusNotFound, "invalid redirect target")
	case errors.Is(err, service.ErrBodyNotReplayable):
		h.logger.Error("redirect needs request body replay", "err", err, "path", path)
		return respondError(c, http.StatusBadGateway, "request body too large to replay")
	case errors.Is(err, service.ErrTooManyRedirects):
		h.logger.Error("redirect limit reached", "err", err, "path", path)
		return respondError(c, http.StatusBadGateway, "too many redirects")
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Error("upstream timeout", "err", err, "path", path)
		return respondError(c, http.StatusGatewayTimeout, "upstream request timed out")
	case errors.Is(err, context.Canceled):
		h.logger.Info("client disconnected", "path", path)
		return respondError(c, http.StatusBadGateway, "client disconnected")
	default:
		h.logger.Error("proxy error", "err", err, "path", path)
		return respondError(c, http.StatusBadGateway, "proxy request failed")
	}
}

// embeddedPath returns the raw request URI with the proxy prefix removed. A
// URI outside the prefix is treated as a path relative to the asset host.
func embeddedPath(req *http.Request, prefix string) string {
	uri := req.RequestURI
	if uri == "" {
		uri = req.URL.RequestURI()
	}
	if rest, ok := strings.CutPrefix(uri, prefix); ok {
		return rest
	}
	return strings.TrimPrefix(uri, "/")
}
