package github

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultCDNBaseURL is the jsDelivr endpoint that mirrors GitHub repositories.
const DefaultCDNBaseURL = "https://cdn.jsdelivr.net/gh"

// ErrInvalidURL is returned when a string cannot be used as an upstream URL.
var ErrInvalidURL = errors.New("invalid url")

var (
	// Some clients and intermediaries collapse "//" in paths, so
	// "https:/github.com" has to be accepted as well.
	schemeSlashes = regexp.MustCompile(`^https?:/+`)
	hasScheme     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	githubHost    = regexp.MustCompile(`(?i)^(?:https?://)?github\.com`)
)

// Parse parses raw as an absolute http(s) URL.
func Parse(raw string) (*url.URL, error) {
	return ParseRef(nil, raw)
}

// ParseRef parses raw, resolving it against base when it is relative. A nil
// base requires raw to be absolute.
func ParseRef(base *url.URL, raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// NormalizeEmbeddedPath rewrites any "http:/", "https:///" style prefix to
// "https://".
func NormalizeEmbeddedPath(path string) string {
	return schemeSlashes.ReplaceAllLiteralString(path, "https://")
}

// EnsureScheme prefixes "https://" to a path that carries no scheme, such as
// "github.com/owner/repo/releases/...".
func EnsureScheme(path string) string {
	if hasScheme.MatchString(path) {
		return path
	}
	return "https://" + path
}

// BlobToRaw turns a blob page URL into the matching raw download URL.
func BlobToRaw(path string) string {
	return strings.Replace(path, "/blob/", "/raw/", 1)
}

// JSDelivrURL rewrites a github.com blob URL onto the CDN mirror, e.g.
// https://github.com/o/r/blob/main/f.txt -> https://cdn.jsdelivr.net/gh/o/r@main/f.txt.
func JSDelivrURL(path, cdnBase string) string {
	if cdnBase == "" {
		cdnBase = DefaultCDNBaseURL
	}
	cdnBase = strings.TrimSuffix(cdnBase, "/")
	path = strings.Replace(path, "/blob/", "@", 1)
	return githubHost.ReplaceAllLiteralString(path, cdnBase)
}
