package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
)

// Storage abstracts the backend that persists page settings and counters.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get retrieves the stored value for a key.
	// Returns nil, nil if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value for a key with an expiration duration.
	// If exp is 0, the key does not expire.
	Set(ctx context.Context, key string, value []byte, exp time.Duration) error

	// Increment atomically increments a counter for a key, returning the new value.
	// If the key does not exist, it is created with the value of delta.
	// exp sets the expiration for the key (only applied on creation).
	// Counters are stored as base-10 text on every backend.
	Increment(ctx context.Context, key string, delta int64, exp time.Duration) (int64, error)

	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}

// Backend is a Storage that holds resources until closed.
type Backend interface {
	Storage
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Config selects and configures a storage backend.
type Config struct {
	Backend string       `mapstructure:"backend" json:"backend"`
	Memory  MemoryConfig `mapstructure:"memory" json:"memory"`
	Redis   RedisConfig  `mapstructure:"redis" json:"redis"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" json:"sqlite"`
}

// MemoryConfig configures the in-memory backend.
type MemoryConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Memory: MemoryConfig{
			CleanupInterval: time.Minute,
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			PoolSize:    defaultRedisPoolSize,
			MaxRetries:  defaultRedisMaxRetries,
			DialTimeout: defaultRedisDialTimeout,
		},
		SQLite: SQLiteConfig{
			Path: "autorefresh.db",
		},
	}
}

// Open constructs the backend named by cfg.Backend. The clock drives
// expiry for the memory and sqlite backends.
func Open(cfg Config, clk clock.Clock) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		s := NewMemoryStorage(clk)
		if cfg.Memory.CleanupInterval > 0 {
			if err := s.StartCleanup(cfg.Memory.CleanupInterval); err != nil {
				return nil, err
			}
		}
		return s, nil
	case BackendRedis:
		return NewRedisStorage(&cfg.Redis)
	case BackendSQLite:
		return NewSQLiteStorage(&cfg.SQLite, clk)
	default:
		return nil, fmt.Errorf("%w %q, must be one of: memory, redis, sqlite", ErrUnknownBackend, cfg.Backend)
	}
}
