// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"gh-proxy-go/internal/config"
	"gh-proxy-go/internal/github"
	"gh-proxy-go/internal/metrics"
	"gh-proxy-go/internal/model"
)

var (
	// ErrProxyFetchFailed is returned when an upstream hop fails at the transport level.
	ErrProxyFetchFailed = errors.New("proxy fetch failed")
	// ErrInvalidRedirectTarget is returned when an upstream Location header cannot be parsed.
	ErrInvalidRedirectTarget = errors.New("invalid redirect target")
	// ErrTooManyRedirects is returned when a redirect chain exceeds proxy.max_redirects.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrBodyNotReplayable is returned when a followed redirect needs a request
	// body that was too large to keep.
	ErrBodyNotReplayable = errors.New("request body not replayable")
	// ErrNoAssetURL is returned for unclassified paths when proxy.asset_url is unset.
	ErrNoAssetURL = errors.New("no asset url configured")
)

// strippedResponseHeaders would otherwise apply the origin's policy to the proxy's own domain.
var strippedResponseHeaders = []string{
	"Content-Security-Policy",
	"Content-Security-Policy-Report-Only",
	"Clear-Site-Data",
}

// Upstream sends single requests to upstream hosts. DoStream must not follow
// redirects; Fetch may. *client.UpstreamClient satisfies it.
type Upstream interface {
	DoStream(ctx context.Context, method, rawURL string, header http.Header, body io.Reader, contentLength int64) (*model.ProxyResponse, error)
	Fetch(ctx context.Context, rawURL string) (*model.ProxyResponse, error)
}

// replayLimit caps the request body copy kept for followed redirects. The
// first hop always streams the whole body regardless of size.
const replayLimit = 8 << 20

// ForwardService resolves GitHub resources through a chain of upstream hops.
type ForwardService struct {
	client      Upstream
	cfg         *config.ProxyConfig
	logger      *slog.Logger
	metrics     *metrics.Metrics
	replayLimit int64
}

// NewForwardService creates a ForwardService. The metrics parameter is optional.
func NewForwardService(c Upstream, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ForwardService {
	return &ForwardService{
		client:      c,
		cfg:         &cfg.Proxy,
		logger:      logger.With("component", "forward_service"),
		metrics:     m,
		replayLimit: replayLimit,
	}
}

// Forward sends pr upstream and resolves redirects. A redirect to another
// GitHub resource is returned to the caller with its Location prefixed so the
// client comes back through the proxy; any other redirect is followed here, up
// to proxy.max_redirects hops, or handed to the client unchanged when
// following is disabled. Only the response handed back is sanitized.
// The caller is responsible for closing the response body.
func (s *ForwardService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	body := newReplayBody(pr.Body, s.replayLimit)

	target := pr.Target
	reqBody, reqLength := body.first(pr.ContentLength)
	for hop := 0; ; hop++ {
		s.logger.Debug("forwarding request",
			"method", pr.Method,
			"url", target.String(),
			"hop", hop,
		)

		resp, err := s.client.DoStream(pr.Ctx, pr.Method, target.String(), pr.Header.Clone(), reqBody, reqLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProxyFetchFailed, target.Redacted(), err)
		}
		resp.Hops = hop

		location := resp.Header.Get("Location")
		if location == "" {
			sanitizeHeaders(resp.Header)
			return resp, nil
		}

		if github.IsGitHubDomain(location) {
			resp.Header.Set("Location", s.cfg.Prefix+location)
			sanitizeHeaders(resp.Header)
			s.metrics.ObserveRedirect(metrics.RedirectRewritten)
			s.logger.Info("redirect rewritten", "status", resp.StatusCode, "location", location)
			return resp, nil
		}

		if !s.cfg.FollowRedirects() {
			sanitizeHeaders(resp.Header)
			s.metrics.ObserveRedirect(metrics.RedirectPassed)
			return resp, nil
		}

		_ = resp.Body.Close()

		next, err := github.ParseRef(target, location)
		if err != nil {
			s.metrics.ObserveRedirect(metrics.RedirectInvalid)
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidRedirectTarget, location, err)
		}
		if hop >= s.cfg.MaxRedirects {
			s.metrics.ObserveRedirect(metrics.RedirectExhausted)
			return nil, fmt.Errorf("%w: stopped after %d hops at %s", ErrTooManyRedirects, hop+1, next.Redacted())
		}

		reqBody, reqLength, err = body.replay()
		if err != nil {
			return nil, fmt.Errorf("replay request body to %s: %w", next.Redacted(), err)
		}

		s.metrics.ObserveRedirect(metrics.RedirectFollowed)
		s.logger.Info("following redirect", "status", resp.StatusCode, "from", target.Redacted(), "to", next.Redacted())
		target = next
	}
}

// FetchAsset fetches an unclassified path from proxy.asset_url. The response
// is returned as-is. The caller is responsible for closing the response body.
func (s *ForwardService) FetchAsset(pr *model.ProxyRequest, path string) (*model.ProxyResponse, error) {
	if s.cfg.AssetURL == "" {
		return nil, ErrNoAssetURL
	}
	u, err := github.Parse(s.cfg.AssetURL + path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fetching asset", "url", u.Redacted())

	resp, err := s.client.Fetch(pr.Ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProxyFetchFailed, u.Redacted(), err)
	}
	return resp, nil
}

// sanitizeHeaders exposes every header to cross-origin readers and drops the
// origin's site policies.
func sanitizeHeaders(h http.Header) {
	h.Set("Access-Control-Expose-Headers", "*")
	for _, key := range strippedResponseHeaders {
		h.Del(key)
	}
}

// replayBody streams a request body to the first hop while keeping a copy of
// up to limit bytes, so a followed redirect can resend it.
type replayBody struct {
	src   io.ReadCloser
	limit int64

	mu       sync.Mutex
	buf      bytes.Buffer
	overflow bool
}

func newReplayBody(rc io.ReadCloser, limit int64) *replayBody {
	if rc == http.NoBody {
		rc = nil
	}
	return &replayBody{src: rc, limit: limit}
}

// first returns the reader and length for the first hop.
func (b *replayBody) first(contentLength int64) (io.Reader, int64) {
	if b.src == nil {
		return nil, 0
	}
	return b, contentLength
}

// Read may run on the transport's write goroutine, concurrently with replay.
func (b *replayBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.src.Read(p)
	if n > 0 && !b.overflow {
		if int64(b.buf.Len()+n) > b.limit {
			b.overflow = true
			b.buf.Reset()
		} else {
			b.buf.Write(p[:n])
		}
	}
	return n, err
}

// replay returns the full body for another hop. Whatever the previous hop
// left unread is drained first.
func (b *replayBody) replay() (io.Reader, int64, error) {
	if b.src == nil {
		return nil, 0, nil
	}
	if _, err := io.Copy(io.Discard, b); err != nil {
		return nil, 0, fmt.Errorf("read request body: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.overflow {
		return nil, 0, fmt.Errorf("%w: larger than %d bytes", ErrBodyNotReplayable, b.limit)
	}
	data := b.buf.Bytes()
	return bytes.NewReader(data), int64(len(data)), nil
}
