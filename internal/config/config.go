// Package config loads and validates JobScout configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/jobscout/internal/jobs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig           `mapstructure:"server"`
	Logging LoggingConfig          `mapstructure:"logging"`
	Search  SearchConfig           `mapstructure:"search"`
	HTTP    HTTPConfig             `mapstructure:"http"`
	Proxy   ProxyConfig            `mapstructure:"proxy"`
	Cache   CacheConfig            `mapstructure:"cache"`
	Careers map[string]jobs.Career `mapstructure:"careers"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	StaticDir             string `mapstructure:"static_dir"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SearchConfig governs fan-out.
type SearchConfig struct {
	Workers        int `mapstructure:"workers"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HTTPConfig configures the retrieval client.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// ProxyConfig configures the proxy pool.
type ProxyConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	Probability            float64       `mapstructure:"probability"`
	Capacity               int           `mapstructure:"capacity"`
	PerSourceLimit         int           `mapstructure:"per_source_limit"`
	RefreshIntervalSeconds int           `mapstructure:"refresh_interval_seconds"`
	Sources                []ProxySource `mapstructure:"sources"`
}

// ProxySource is a public list of host:port lines.
type ProxySource struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Scheme string `mapstructure:"scheme"`
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Backend              string `mapstructure:"backend"`
	Path                 string `mapstructure:"path"`
	DSN                  string `mapstructure:"dsn"`
	Table                string `mapstructure:"table"`
	TTLMinutes           int    `mapstructure:"ttl_minutes"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`

	// Postgres pool limits; zero keeps the pgx defaults.
	MaxConns               int32 `mapstructure:"max_conns"`
	MinConns               int32 `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int   `mapstructure:"max_conn_lifetime_seconds"`
}

// Load builds a Config from a .env file, disk and the environment.
func Load(path string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("JOBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// PORT is honored for platforms that inject it.
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse PORT %q: %w", raw, err)
		}
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("search.workers", 4)
	v.SetDefault("search.timeout_seconds", 30)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.rate_limit_rps", 1.0)
	v.SetDefault("http.rate_limit_burst", 2)
	v.SetDefault("proxy.enabled", true)
	v.SetDefault("proxy.probability", 0.5)
	v.SetDefault("proxy.capacity", 100)
	v.SetDefault("proxy.per_source_limit", 50)
	v.SetDefault("proxy.refresh_interval_seconds", 300)
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "jobscout_cache.db")
	v.SetDefault("cache.table", "jobscout_cache")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.sweep_interval_seconds", 600)
	v.SetDefault("cache.max_conns", 0)
	v.SetDefault("cache.min_conns", 0)
	v.SetDefault("cache.max_conn_lifetime_seconds", 0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Search.Workers <= 0 {
		return fmt.Errorf("search.workers must be > 0")
	}
	if c.Search.TimeoutSeconds <= 0 {
		return fmt.Errorf("search.timeout_seconds must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= c.Search.TimeoutSeconds {
		return fmt.Errorf("server.request_timeout_seconds must exceed search.timeout_seconds")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	}
	if c.Proxy.Probability < 0 || c.Proxy.Probability > 1 {
		return fmt.Errorf("proxy.probability must be within [0, 1]")
	}
	if c.Proxy.Enabled && c.Proxy.Capacity <= 0 {
		return fmt.Errorf("proxy.capacity must be > 0 when proxies are enabled")
	}
	for i, src := range c.Proxy.Sources {
		if src.URL == "" {
			return fmt.Errorf("proxy.sources[%d].url is required", i)
		}
	}
	if c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be > 0")
	}
	if c.Cache.MaxConns < 0 || c.Cache.MinConns < 0 || c.Cache.MaxConnLifetimeSeconds < 0 {
		return fmt.Errorf("cache pool limits must be >= 0")
	}
	if c.Cache.MaxConns > 0 && c.Cache.MinConns > c.Cache.MaxConns {
		return fmt.Errorf("cache.min_conns must not exceed cache.max_conns")
	}
	switch c.Cache.Backend {
	case "sqlite":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the sqlite backend")
		}
	case "postgres":
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("cache.backend %q is not one of sqlite, postgres, memory", c.Cache.Backend)
	}
	if len(c.Careers) > 0 {
		if err := jobs.Catalog(c.Careers).Validate(); err != nil {
			return fmt.Errorf("careers: %w", err)
		}
	}
	return nil
}

// Catalog returns the configured careers, or the built-in catalog when none are set.
func (c Config) Catalog() jobs.Catalog {
	if len(c.Careers) == 0 {
		return jobs.DefaultCatalog()
	}
	return jobs.Catalog(c.Careers)
}

// CacheTTL returns the cache lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// CacheMaxConnLifetime returns how long a Postgres connection may be reused. Zero keeps the driver default.
func (c Config) CacheMaxConnLifetime() time.Duration {
	return time.Duration(c.Cache.MaxConnLifetimeSeconds) * time.Second
}

// SweepInterval returns how often expired cache rows are purged. Zero disables sweeping.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalSeconds) * time.Second
}

// SearchTimeout returns the fan-in deadline.
func (c Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP server deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-attempt retrieval deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ProxyRefreshInterval returns the pool's maximum age before a refresh.
func (c Config) ProxyRefreshInterval() time.Duration {
	return time.Duration(c.Proxy.RefreshIntervalSeconds) * time.Second
}
