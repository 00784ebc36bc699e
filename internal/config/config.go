// Package config loads the autorefresh configuration.
//
// Configuration comes from a JSON file, with every key overridable through
// AUTOREFRESH_ prefixed environment variables (AUTOREFRESH_SERVER_ADDR for
// server.addr). Fields not given keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/poll"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/storage"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "AUTOREFRESH"

// Config is the top-level configuration for an autorefresh session.
type Config struct {
	Server  ServerConfig   `mapstructure:"server" json:"server"`
	Poll    poll.Config    `mapstructure:"poll" json:"poll"`
	Storage storage.Config `mapstructure:"storage" json:"storage"`
	Pages   []PageConfig   `mapstructure:"pages" json:"pages"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
	// HistoryLimit caps the refresh events kept in memory. Zero keeps all.
	HistoryLimit int `mapstructure:"history_limit" json:"history_limit"`
	// RecordFile, when set, receives the refresh history as JSON on shutdown.
	RecordFile string `mapstructure:"record_file" json:"record_file,omitempty"`
}

// PageConfig describes one auto-refreshing page. Active and Interval are
// the values used until the page's own settings have been stored.
type PageConfig struct {
	Name     string        `mapstructure:"name" json:"name"`
	DataSet  string        `mapstructure:"data_set" json:"data_set,omitempty"`
	Params   string        `mapstructure:"params" json:"params,omitempty"`
	Active   bool          `mapstructure:"active" json:"active"`
	Interval time.Duration `mapstructure:"interval" json:"interval"`
	Blocked  bool          `mapstructure:"blocked" json:"blocked,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			HistoryLimit: 1000,
		},
		Poll:    poll.DefaultConfig(),
		Storage: storage.DefaultConfig(),
		Pages: []PageConfig{
			{Name: "plugins", DataSet: "plugins_info", Interval: 10 * time.Second},
		},
	}
}

// Page returns the named page.
func (c Config) Page(name string) (PageConfig, bool) {
	for _, p := range c.Pages {
		if p.Name == name {
			return p, true
		}
	}
	return PageConfig{}, false
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.HistoryLimit < 0 {
		return fmt.Errorf("server.history_limit must not be negative, got %d", c.Server.HistoryLimit)
	}
	if c.Poll.BaseURL == "" {
		return errors.New("poll.base_url is required")
	}
	if c.Poll.Timeout < 0 {
		return fmt.Errorf("poll.timeout must not be negative, got %s", c.Poll.Timeout)
	}
	if c.Poll.Rate < 0 {
		return fmt.Errorf("poll.rate must not be negative, got %g", c.Poll.Rate)
	}
	if err := validateStorage(c.Storage); err != nil {
		return err
	}

	if len(c.Pages) == 0 {
		return errors.New("at least one page is required")
	}
	seen := make(map[string]bool, len(c.Pages))
	for i, p := range c.Pages {
		if p.Name == "" {
			return fmt.Errorf("pages[%d].name is required", i)
		}
		if strings.ContainsAny(p.Name, ":/ ") {
			return fmt.Errorf("page name %q must not contain ':', '/' or spaces", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate page %q", p.Name)
		}
		seen[p.Name] = true
		if p.Interval < 0 {
			return fmt.Errorf("page %q: interval must not be negative, got %s", p.Name, p.Interval)
		}
	}
	return nil
}

func validateStorage(s storage.Config) error {
	switch s.Backend {
	case storage.BackendMemory:
		if s.Memory.CleanupInterval < 0 {
			return fmt.Errorf("storage.memory.cleanup_interval must not be negative, got %s", s.Memory.CleanupInterval)
		}
	case storage.BackendRedis:
		if s.Redis.Cluster {
			if len(s.Redis.ClusterNodes) == 0 {
				return errors.New("storage.redis.cluster_nodes is required in cluster mode")
			}
			return nil
		}
		if s.Redis.Host == "" {
			return errors.New("storage.redis.host is required")
		}
		if s.Redis.Port <= 0 {
			return fmt.Errorf("storage.redis.port must be positive, got %d", s.Redis.Port)
		}
	case storage.BackendSQLite:
		if s.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	default:
		return fmt.Errorf("%w %q, must be one of: memory, redis, sqlite", storage.ErrUnknownBackend, s.Backend)
	}
	return nil
}

// Load reads configuration from path and the environment. An empty path
// uses defaults and the environment only.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Default(), fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Default(), fmt.Errorf("reading config file: %w", err)
	}
	return Load(path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.history_limit", d.Server.HistoryLimit)
	v.SetDefault("server.record_file", d.Server.RecordFile)

	v.SetDefault("poll.base_url", d.Poll.BaseURL)
	v.SetDefault("poll.data_set", d.Poll.DataSet)
	v.SetDefault("poll.params", d.Poll.Params)
	v.SetDefault("poll.timeout", d.Poll.Timeout)
	v.SetDefault("poll.rate", d.Poll.Rate)
	v.SetDefault("poll.burst", d.Poll.Burst)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.memory.cleanup_interval", d.Storage.Memory.CleanupInterval)
	v.SetDefault("storage.redis.host", d.Storage.Redis.Host)
	v.SetDefault("storage.redis.port", d.Storage.Redis.Port)
	v.SetDefault("storage.redis.password", d.Storage.Redis.Password)
	v.SetDefault("storage.redis.db", d.Storage.Redis.DB)
	v.SetDefault("storage.redis.cluster", d.Storage.Redis.Cluster)
	v.SetDefault("storage.redis.cluster_nodes", d.Storage.Redis.ClusterNodes)
	v.SetDefault("storage.redis.pool_size", d.Storage.Redis.PoolSize)
	v.SetDefault("storage.redis.max_retries", d.Storage.Redis.MaxRetries)
	v.SetDefault("storage.redis.dial_timeout", d.Storage.Redis.DialTimeout)
	v.SetDefault("storage.sqlite.path", d.Storage.SQLite.Path)

	pages := make([]map[string]any, 0, len(d.Pages))
	for _, p := range d.Pages {
		pages = append(pages, map[string]any{
			"name":     p.Name,
			"data_set": p.DataSet,
			"active":   p.Active,
			"interval": p.Interval.String(),
		})
	}
	v.SetDefault("pages", pages)
	return v
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "server": {
    "addr": ":8080",
    "history_limit": 1000
  },
  "poll": {
    "base_url": "http://localhost:8383",
    "timeout": "10s",
    "rate": 2,
    "burst": 1
  },
  "storage": {
    "backend": "sqlite",
    "sqlite": {
      "path": "autorefresh.db"
    }
  },
  "pages": [
    { "name": "plugins", "data_set": "plugins_info", "active": true, "interval": "10s" },
    { "name": "logics", "data_set": "logics_info", "interval": "30s" }
  ]
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
