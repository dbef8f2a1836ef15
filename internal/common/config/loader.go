// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on
// top and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about, so every key
	// that may come purely from the environment is registered here.
	for key, def := range defaults() {
		v.SetDefault(key, def)
	}
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"app.name":                           "staffing-gateway",
		"app.environment":                    "development",
		"server.address":                     ":3001",
		"server.path_prefix":                 "/api",
		"server.max_body_bytes":              2 << 20,
		"server.read_header_timeout":         10000,
		"server.shutdown_timeout":            30000,
		"upstream.base_url":                  "",
		"upstream.timeout":                   15000,
		"upstream.max_response_bytes":        10 << 20,
		"upstream.max_idle_conns":            100,
		"catalog.path":                       "",
		"rate_limit.enabled":                 true,
		"rate_limit.limit":                   300,
		"rate_limit.window":                  60000,
		"rate_limit.redis.address":           "",
		"rate_limit.redis.password":          "",
		"rate_limit.redis.db":                0,
		"circuit_breaker.enabled":            true,
		"circuit_breaker.failure_threshold":  5,
		"circuit_breaker.open_timeout":       30000,
		"circuit_breaker.half_open_requests": 1,
		"logging.level":                      "info",
		"logging.format":                     "json",
		"logging.output":                     "stdout",
		"observability.service_name":         "staffing-gateway",
		"observability.jaeger_endpoint":      "",
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// An unset variable expands to "" so applyDefaults can fill it.
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig honors environment names used by earlier deployments
// of the dashboard.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Upstream.BaseURL == "" {
		for _, name := range []string{"EXTERNAL_API_URL", "NEXT_PUBLIC_API_URL"} {
			if val := os.Getenv(name); val != "" {
				cfg.Upstream.BaseURL = val
				break
			}
		}
	}
	if cfg.RateLimit.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.RateLimit.Redis.Address = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")

	if cfg.Upstream.Timeout <= 0 {
		cfg.Upstream.Timeout = 15000
	}
	if cfg.Upstream.MaxResponseBytes <= 0 {
		cfg.Upstream.MaxResponseBytes = 10 << 20
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 2 << 20
	}
	if cfg.Server.PathPrefix != "" && !strings.HasPrefix(cfg.Server.PathPrefix, "/") {
		cfg.Server.PathPrefix = "/" + cfg.Server.PathPrefix
	}
	cfg.Server.PathPrefix = strings.TrimRight(cfg.Server.PathPrefix, "/")

	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = 60000
	}
	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.CircuitBreaker.OpenTimeout <= 0 {
		cfg.CircuitBreaker.OpenTimeout = 30000
	}
	if cfg.CircuitBreaker.HalfOpenRequests == 0 {
		cfg.CircuitBreaker.HalfOpenRequests = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	u, err := cfg.Upstream.ParsedBaseURL()
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url must include a host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("upstream.base_url must not carry a query or fragment")
	}

	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be positive when rate limiting is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
