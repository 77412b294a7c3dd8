// Package client provides the upstream HTTP client used to reach GitHub and
// the static asset host.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gh-proxy-go/internal/config"
	"gh-proxy-go/internal/metrics"
	"gh-proxy-go/internal/model"
)

const userAgent = "gh-proxy-go/1.0"

// UpstreamClient sends requests to upstream hosts. Redirects are never
// followed by Do or DoStream; the forwarder decides what to do with them.
//
// Do goes straight to the transport rather than through an http.Client with
// CheckRedirect, because http.Client rejects an unparsable Location header
// before CheckRedirect runs and the forwarder needs to see it.
type UpstreamClient struct {
	transport    http.RoundTripper
	timeout      time.Duration
	followClient *http.Client
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	proxy := http.ProxyFromEnvironment
	if cfg.Upstream.ProxyURL != "" {
		// Validated by config.Load.
		if u, err := url.Parse(cfg.Upstream.ProxyURL); err == nil {
			proxy = http.ProxyURL(u)
		}
	}

	transport := &http.Transport{
		Proxy:               proxy,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	timeout := time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second

	return &UpstreamClient{
		transport: transport,
		timeout:   timeout,
		// No Client.Timeout: it would also bound body streaming.
		followClient: &http.Client{Transport: transport},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Do executes an HTTP request without following redirects and returns the raw
// response. The caller is responsible for closing the response body.
// The timeout bounds the wait for response headers only.
func (c *UpstreamClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	return c.send(c.transport.RoundTrip, req)
}

// DoStream executes a request and returns the response body as a stream.
// The caller is responsible for closing the returned ReadCloser.
// The provided context controls the lifetime of the upstream request:
// when the context is canceled (e.g. client disconnects), the upstream
// request is also canceled. A negative contentLength means unknown; the body
// is then sent chunked.
func (c *UpstreamClient) DoStream(ctx context.Context, method, rawURL string, header http.Header, body io.Reader, contentLength int64) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if body != nil && contentLength >= 0 {
		req.ContentLength = contentLength
	}
	if header != nil {
		req.Header = header
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	return c.Do(req)
}

// Fetch issues a plain GET that follows redirects natively. It is used for
// static assets, which need no redirect rewriting.
func (c *UpstreamClient) Fetch(ctx context.Context, rawURL string) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	return c.send(c.followClient.Do, req)
}

// send applies the per-hop timeout to the wait for response headers. The
// timer stops once headers arrive, so a large body streams for as long as the
// client keeps reading. The request context is released when the returned
// body is closed.
func (c *UpstreamClient) send(rt roundTrip, req *http.Request) (*model.ProxyResponse, error) {
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	stop := func() bool { return true }
	if c.timeout > 0 {
		stop = time.AfterFunc(c.timeout, cancel).Stop
	}

	resp, err := c.do(rt, req)
	// Stop reports false once the timer has fired and canceled ctx.
	inTime := stop()
	if err != nil {
		cancel()
		if !inTime {
			return nil, fmt.Errorf("upstream request: no response headers within %s: %w", c.timeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	if !inTime {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("upstream request: no response headers within %s: %w", c.timeout, context.DeadlineExceeded)
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// roundTrip is satisfied by both http.Client.Do and http.RoundTripper.RoundTrip.
type roundTrip func(*http.Request) (*http.Response, error)

func (c *UpstreamClient) do(send roundTrip, req *http.Request) (*model.ProxyResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := send(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// cancelOnClose releases the request context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
