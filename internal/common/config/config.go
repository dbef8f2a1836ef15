// internal/common/config/config.go
package config

import "net/url"

// DefaultUpstreamBaseURL is the only place a fallback upstream host is named.
// Deployments override it with upstream.base_url or UPSTREAM_BASE_URL.
const DefaultUpstreamBaseURL = "http://localhost:8000"

// Config is the main application configuration struct.
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	Server         ServerConfig         `mapstructure:"server"`
	Upstream       UpstreamConfig       `mapstructure:"upstream"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig controls the inbound HTTP listener.
type ServerConfig struct {
	Address           string `mapstructure:"address"`
	PathPrefix        string `mapstructure:"path_prefix"`
	MaxBodyBytes      int64  `mapstructure:"max_body_bytes"`
	ReadHeaderTimeout int    `mapstructure:"read_header_timeout"` // milliseconds
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout"`    // milliseconds
}

// UpstreamConfig describes the external management service.
type UpstreamConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds
	MaxResponseBytes int64  `mapstructure:"max_response_bytes"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
}

// CatalogConfig points at the resource catalog. An empty path selects the
// catalog compiled into the binary.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type RateLimitConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Limit   int         `mapstructure:"limit"`  // requests per window per client and resource
	Window  int         `mapstructure:"window"` // milliseconds
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CircuitBreakerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	FailureThreshold uint32 `mapstructure:"failure_threshold"` // consecutive failures before opening
	OpenTimeout      int    `mapstructure:"open_timeout"`      // milliseconds
	HalfOpenRequests uint32 `mapstructure:"half_open_requests"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// ParsedBaseURL returns the upstream base URL as a *url.URL.
func (u UpstreamConfig) ParsedBaseURL() (*url.URL, error) {
	return url.Parse(u.BaseURL)
}
