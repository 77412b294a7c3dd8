// Package config handles TOML configuration loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/asaskevich/govalidator"
	toml "github.com/pelletier/go-toml/v2"

	"gh-proxy-go/internal/github"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/gh-proxy/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Prefix      string `kong:"help='Path prefix preceding the embedded GitHub URL (overrides config).',env='GH_PROXY_PREFIX'"`
	ProxyConfig string `kong:"name='proxy-config',help='Proxy settings as a JSON object (overrides config).',env='GH_PROXY_CONFIG'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"` // 0 means the rate rounded up
}

// ProxyConfig controls how embedded GitHub paths are resolved. The JSON names
// are the keys accepted by --proxy-config.
type ProxyConfig struct {
	Prefix          string   `toml:"prefix" json:"prefix"`
	AllowedDomains  []string `toml:"allowed_domains" json:"allowedDomains"`
	JSDelivrEnabled bool     `toml:"jsdelivr_enabled" json:"jsdelivrEnabled"`
	AssetURL        string   `toml:"asset_url" json:"assetUrl"`
	CDNBaseURL      string   `toml:"cdn_base_url" json:"cdnBaseUrl"`
	MaxRedirects    int      `toml:"max_redirects" json:"maxRedirects"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
	ProxyURL        string `toml:"proxy_url"` // outbound proxy; empty uses HTTP_PROXY/HTTPS_PROXY
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/gh-proxy/config.toml then configs/config.toml. A missing file is only
// accepted when the proxy settings are supplied through --proxy-config.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	case cli.ProxyConfig == "":
		return nil, fmt.Errorf("config: no config file found (searched %v) and no --proxy-config given", configSearchPaths)
	}

	if err := cfg.applyCLI(cli); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags. The JSON proxy
// object is applied first so that --prefix wins over it.
func (c *Config) applyCLI(cli *CLI) error {
	if cli.ProxyConfig != "" {
		if err := json.Unmarshal([]byte(cli.ProxyConfig), &c.Proxy); err != nil {
			return fmt.Errorf("parse proxy-config: %w", err)
		}
	}
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Prefix != "" {
		c.Proxy.Prefix = cli.Prefix
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	return nil
}

func (c *Config) validate() error {
	// Proxy settings.
	if p := c.Proxy.Prefix; p != "" && p[0] != '/' {
		return fmt.Errorf("proxy.prefix must start with '/'; got %q", p)
	}
	for _, d := range c.Proxy.AllowedDomains {
		host := d
		if h, _, ok := strings.Cut(d, ":"); ok {
			host = h
		}
		if !govalidator.IsDNSName(host) && !govalidator.IsIP(host) {
			return fmt.Errorf("proxy.allowed_domains contains invalid host %q", d)
		}
	}
	if err := validateHTTPURL("proxy.asset_url", c.Proxy.AssetURL); err != nil {
		return err
	}
	if err := validateHTTPURL("proxy.cdn_base_url", c.Proxy.CDNBaseURL); err != nil {
		return err
	}
	if err := validateHTTPURL("upstream.proxy_url", c.Upstream.ProxyURL); err != nil {
		return err
	}
	if c.Proxy.MaxRedirects < -1 {
		return fmt.Errorf("proxy.max_redirects must be -1 (disabled) or positive; got %d", c.Proxy.MaxRedirects)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("server.rate_limit.burst must be non-negative; got %d", c.Server.RateLimit.Burst)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/healthz", "/proxy/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// validateHTTPURL accepts an empty value or an absolute http(s) URL.
func validateHTTPURL(field, value string) error {
	if value == "" {
		return nil
	}
	if !govalidator.IsURL(value) {
		return fmt.Errorf("%s is not a valid URL: %q", field, value)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https; got %q", field, value)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, MaxRedirects, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1 << 30 // 1 GiB; bodies are streamed, git pushes can be large
	}
	if c.Proxy.Prefix == "" {
		c.Proxy.Prefix = "/"
	}
	if c.Proxy.CDNBaseURL == "" {
		c.Proxy.CDNBaseURL = github.DefaultCDNBaseURL
	}
	if c.Proxy.MaxRedirects == 0 {
		c.Proxy.MaxRedirects = 10
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FollowRedirects reports whether non-GitHub redirects are followed by the
// proxy. max_redirects = -1 hands them to the client instead.
func (c *ProxyConfig) FollowRedirects() bool {
	return c.MaxRedirects >= 0
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HostAllowed reports whether host (optionally with a port) is listed in
// AllowedDomains. An entry with a port only matches that exact host:port.
func (c *ProxyConfig) HostAllowed(host string) bool {
	for _, d := range c.AllowedDomains {
		if strings.EqualFold(d, host) {
			return true
		}
	}
	hostname := host
	if h, _, ok := strings.Cut(host, ":"); ok {
		hostname = h
	}
	for _, d := range c.AllowedDomains {
		if !strings.Contains(d, ":") && strings.EqualFold(d, hostname) {
			return true
		}
	}
	return false
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
