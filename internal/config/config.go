// Package config loads umbra configuration from defaults, an optional config
// file, UMBRA_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/star/umbra/internal/logging"
	"github.com/star/umbra/internal/overlap"
	"github.com/star/umbra/internal/search"
)

// EnvPrefix prefixes every environment override, e.g. UMBRA_SEARCH_WORKERS.
const EnvPrefix = "UMBRA"

// Config is the complete application configuration.
type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Overlap OverlapConfig `mapstructure:"overlap"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

// SearchConfig configures the minimal-separation search.
type SearchConfig struct {
	Strategy   string        `mapstructure:"strategy"`
	Workers    int           `mapstructure:"workers"` // 0: runtime.NumCPU()
	CoarseStep time.Duration `mapstructure:"coarse_step"`
}

// OverlapConfig configures the coverage estimator.
type OverlapConfig struct {
	Samples int64  `mapstructure:"samples"`
	Workers int    `mapstructure:"workers"` // 0: runtime.NumCPU()
	Region  string `mapstructure:"region"`
	Seed    string `mapstructure:"seed"` // empty: random per run
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures `umbra serve`.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AuthEnabled    bool          `mapstructure:"auth_enabled"`
	AuthToken      string        `mapstructure:"auth_token"`
	MaxSamples     int64         `mapstructure:"max_samples"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	TrustProxy     bool          `mapstructure:"trust_proxy"`
	MaxPerIP       int           `mapstructure:"max_per_ip"`
	MaxTotal       int           `mapstructure:"max_total"`
	CacheEntries   int           `mapstructure:"cache_entries"` // 0 disables the report cache
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// flagKeys maps configuration keys to the flag names that override them.
// A key is bound only when its flag exists on the given flag set.
var flagKeys = map[string]string{
	"search.strategy":    "strategy",
	"search.workers":     "workers",
	"overlap.workers":    "workers",
	"overlap.samples":    "nsamples",
	"overlap.region":     "region",
	"overlap.seed":       "seed",
	"log.level":          "log-level",
	"log.format":         "log-format",
	"server.addr":        "addr",
	"server.max_samples": "max-samples",
	"server.trust_proxy": "trust-proxy",
}

// Load reads configuration. path may be empty, in which case only defaults,
// environment and flags apply. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.strategy", string(search.StrategyExhaustive))
	v.SetDefault("search.workers", 0)
	v.SetDefault("search.coarse_step", "60s")

	v.SetDefault("overlap.samples", overlap.DefaultSamples)
	v.SetDefault("overlap.workers", 0)
	v.SetDefault("overlap.region", string(overlap.RegionBounding))
	v.SetDefault("overlap.seed", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.auth_enabled", false)
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.max_samples", 1_000_000)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.max_per_ip", 2)
	v.SetDefault("server.max_total", 16)
	v.SetDefault("server.cache_entries", 256)
	v.SetDefault("server.cache_ttl", "1h")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if _, err := search.ParseStrategy(c.Search.Strategy); err != nil {
		return fmt.Errorf("search.strategy: %w", err)
	}
	if c.Search.Workers < 0 {
		return errors.New("search.workers must not be negative")
	}
	if c.Search.CoarseStep < time.Second {
		return errors.New("search.coarse_step must be at least 1s")
	}

	if c.Overlap.Samples < 0 {
		return errors.New("overlap.samples must not be negative")
	}
	if c.Overlap.Workers < 0 {
		return errors.New("overlap.workers must not be negative")
	}
	if _, err := overlap.ParseRegion(c.Overlap.Region); err != nil {
		return fmt.Errorf("overlap.region: %w", err)
	}
	if _, err := c.Overlap.SeedValue(); err != nil {
		return err
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		return errors.New("log.format must be one of: json, text")
	}

	if c.Server.AuthEnabled && c.Server.AuthToken == "" {
		return errors.New("server.auth_token is required when server.auth_enabled is true")
	}
	if c.Server.MaxSamples < 1 {
		return errors.New("server.max_samples must be at least 1")
	}
	if c.Server.RequestTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.MaxPerIP < 1 || c.Server.MaxTotal < c.Server.MaxPerIP {
		return errors.New("server.max_per_ip must be at least 1 and no greater than server.max_total")
	}
	if c.Server.CacheEntries < 0 || c.Server.CacheTTL < 0 {
		return errors.New("server cache settings must not be negative")
	}
	return nil
}

// SeedValue parses the configured seed; nil means draw a random one.
func (o OverlapConfig) SeedValue() (*uint64, error) {
	if o.Seed == "" {
		return nil, nil
	}
	s, err := strconv.ParseUint(o.Seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("overlap.seed must be an unsigned integer: %q", o.Seed)
	}
	return &s, nil
}
