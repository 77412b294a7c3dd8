// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest represents a client request to be forwarded upstream.
// Target is the first hop; later hops reuse Method, Header and Body.
// ContentLength is -1 when unknown.
type ProxyRequest struct {
	Ctx           context.Context
	Method        string
	Target        *url.URL
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// ProxyResponse represents the upstream response to be streamed back.
// Hops counts the redirects followed before it was received.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Hops       int
}
