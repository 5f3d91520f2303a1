// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as Go duration
// strings ("30s", "5m") or integer nanoseconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		dur, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, perr)
		}
		*d = Duration(dur)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("config: invalid duration %q", node.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Inventory     InventoryConfig     `yaml:"inventory"`
	Cache         CacheConfig         `yaml:"cache"`
	Tenants       TenantsConfig       `yaml:"tenants"`
	Orders        OrdersConfig        `yaml:"orders"`
	Identity      IdentityConfig      `yaml:"identity"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	HandlerTimeout  Duration `yaml:"handler_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// InventoryConfig describes the upstream inventory service and the
// resilience settings wrapped around every call to it.
type InventoryConfig struct {
	URL            string               `yaml:"url"`
	Token          string               `yaml:"token"`
	Timeout        Duration             `yaml:"timeout"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Degradation    DegradationConfig    `yaml:"degradation"`
}

// RetryConfig describes the retry loop for upstream calls.
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`
	Jitter       bool     `yaml:"jitter"`
}

// CircuitBreakerConfig describes circuit breaker thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	SuccessThreshold int      `yaml:"success_threshold"`
	Cooldown         Duration `yaml:"cooldown"`
}

// DegradationConfig describes the stale-read fallback cache.
type DegradationConfig struct {
	TTL Duration `yaml:"ttl"`
}

// CacheConfig describes the fresh-results cache.
type CacheConfig struct {
	TTL            Duration         `yaml:"ttl"`
	MaxEntries     int              `yaml:"max_entries"`
	Strategy       string           `yaml:"strategy"`
	MetricsEnabled bool             `yaml:"metrics_enabled"`
	Store          CacheStoreConfig `yaml:"store"`
}

// CacheStoreConfig selects the cache backing store.
type CacheStoreConfig struct {
	Driver  string `yaml:"driver"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
}

// TenantsConfig describes the app-tenant to inventory-tenant mapping.
type TenantsConfig struct {
	Mappings map[string]int64  `yaml:"mappings"`
	Store    TenantStoreConfig `yaml:"store"`
}

// TenantStoreConfig selects the tenant mapping backing store.
type TenantStoreConfig struct {
	Driver          string   `yaml:"driver"`
	DSNEnv          string   `yaml:"dsn_env"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// OrdersConfig describes order processing settings.
type OrdersConfig struct {
	DefaultType string           `yaml:"default_type"`
	Enrichment  EnrichmentConfig `yaml:"enrichment"`
}

// EnrichmentConfig carries the data merged into every inventory payload.
type EnrichmentConfig struct {
	Country         string              `yaml:"country"`
	Region          string              `yaml:"region"`
	City            string              `yaml:"city"`
	Latitude        *float64            `yaml:"latitude"`
	Longitude       *float64            `yaml:"longitude"`
	ContactName     string              `yaml:"contact_name"`
	ContactPhone    string              `yaml:"contact_phone"`
	ContactEmail    string              `yaml:"contact_email"`
	CostCenter      string              `yaml:"cost_center"`
	ProjectCode     string              `yaml:"project_code"`
	Environment     string              `yaml:"environment"`
	Priority        string              `yaml:"priority"`
	Tags            []string            `yaml:"tags"`
	Metadata        map[string]string   `yaml:"metadata"`
	EnvironmentTags map[string][]string `yaml:"environment_tags"`
}

// IdentityConfig describes the optional JWT verification mode. When disabled
// the tenant header alone identifies the caller.
type IdentityConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Issuer       string   `yaml:"issuer"`
	Audience     string   `yaml:"audience"`
	JWKSURL      string   `yaml:"jwks_url"`
	JWKSCacheTTL Duration `yaml:"jwks_cache_ttl"`
	Algorithms   []string `yaml:"algorithms"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Tracing   TracingConfig `yaml:"tracing"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Cache invalidation strategy names.
const (
	StrategyNever        = "never"
	StrategyWriteThrough = "write-through"
	StrategyWriteBack    = "write-back"
	StrategyTypeBased    = "type-based"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			HandlerTimeout:  Duration(25 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Inventory: InventoryConfig{
			URL:     "http://localhost:8000",
			Timeout: Duration(30 * time.Second),
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(100 * time.Millisecond),
				MaxDelay:     Duration(5 * time.Second),
				Multiplier:   2.0,
				Jitter:       true,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Cooldown:         Duration(60 * time.Second),
			},
			Degradation: DegradationConfig{
				TTL: Duration(5 * time.Minute),
			},
		},
		Cache: CacheConfig{
			TTL:            Duration(60 * time.Second),
			MaxEntries:     1000,
			Strategy:       StrategyWriteBack,
			MetricsEnabled: true,
			Store: CacheStoreConfig{
				Driver:  "memory",
				AddrEnv: "REDIS_ADDR",
			},
		},
		Tenants: TenantsConfig{
			Mappings: map[string]int64{
				"tenant1": 1,
				"tenant2": 2,
				"tenant3": 3,
			},
			Store: TenantStoreConfig{
				Driver:          "static",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration(5 * time.Minute),
			},
		},
		Orders: OrdersConfig{
			DefaultType: "site",
			Enrichment: EnrichmentConfig{
				Country:      "US",
				Region:       "us-east",
				ContactName:  "NetOps Team",
				ContactEmail: "netops@example.com",
				CostCenter:   "CC-1001",
				ProjectCode:  "NETGATE",
				Environment:  "production",
				Priority:     "high",
				Tags:         []string{"netgate", "enriched"},
				EnvironmentTags: map[string][]string{
					"production":  {"prod", "critical"},
					"staging":     {"staging", "test"},
					"development": {"dev", "non-prod"},
				},
			},
		},
		Identity: IdentityConfig{
			JWKSCacheTTL: Duration(1 * time.Hour),
			Algorithms:   []string{"RS256"},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields. A missing file is not an error: the
// gateway can run on defaults plus environment overrides alone.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, uerr)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults + env only.
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// UpstreamConfigured reports whether the gateway has an inventory token and
// can talk to the upstream at all.
func (c *Config) UpstreamConfigured() bool {
	return c.Inventory.Token != ""
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Inventory.URL == "" {
		errs = append(errs, "inventory.url is required")
	} else if _, err := url.Parse(c.Inventory.URL); err != nil {
		errs = append(errs, fmt.Sprintf("inventory.url is not a valid URL: %v", err))
	}
	if c.Inventory.Retry.MaxAttempts < 1 {
		errs = append(errs, "inventory.retry.max_attempts must be at least 1")
	}
	if c.Inventory.Retry.Multiplier < 1 {
		errs = append(errs, "inventory.retry.multiplier must be at least 1")
	}
	if c.Inventory.CircuitBreaker.FailureThreshold < 1 {
		errs = append(errs, "inventory.circuit_breaker.failure_threshold must be at least 1")
	}
	if c.Inventory.CircuitBreaker.SuccessThreshold < 1 {
		errs = append(errs, "inventory.circuit_breaker.success_threshold must be at least 1")
	}
	switch c.Cache.Strategy {
	case StrategyNever, StrategyWriteThrough, StrategyWriteBack, StrategyTypeBased:
	default:
		errs = append(errs, fmt.Sprintf("cache.strategy %q is not one of never, write-through, write-back, type-based", c.Cache.Strategy))
	}
	switch c.Cache.Store.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("cache.store.driver %q is not one of memory, redis", c.Cache.Store.Driver))
	}
	switch c.Tenants.Store.Driver {
	case "static", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("tenants.store.driver %q is not one of static, postgres", c.Tenants.Store.Driver))
	}
	if c.Orders.DefaultType == "" {
		errs = append(errs, "orders.default_type is required")
	}
	if c.Identity.Enabled {
		if c.Identity.Issuer == "" {
			errs = append(errs, "identity.issuer is required when identity is enabled")
		}
		if c.Identity.JWKSURL == "" {
			errs = append(errs, "identity.jwks_url is required when identity is enabled")
		}
		if c.Identity.Audience == "" {
			errs = append(errs, "identity.audience is required when identity is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads environment variables and overrides config values.
// PORT, INVENTORY_URL, and INVENTORY_TOKEN form the deployment contract;
// NETGATE_* variables cover the most commonly tuned fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INVENTORY_URL"); v != "" {
		cfg.Inventory.URL = v
	}
	if v, ok := os.LookupEnv("INVENTORY_TOKEN"); ok {
		cfg.Inventory.Token = v
	}
	if v := os.Getenv("NETGATE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("NETGATE_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("NETGATE_CACHE_STRATEGY"); v != "" {
		cfg.Cache.Strategy = v
	}
	if v := os.Getenv("NETGATE_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = v == "true" || v == "1"
	}

	// The upstream client requires a base URL without a trailing slash.
	cfg.Inventory.URL = strings.TrimRight(cfg.Inventory.URL, "/")
}
