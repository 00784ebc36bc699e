// Package storage exposes the settings storage backends for embedding.
package storage

import (
	internalstorage "github.com/SmitUplenchwar2687/Autorefresh/internal/storage"
	"github.com/SmitUplenchwar2687/Autorefresh/pkg/clock"
)

// Storage abstracts the backend that persists page settings and counters.
type Storage = internalstorage.Storage

// Backend is a Storage that holds resources until closed.
type Backend = internalstorage.Backend

// Config selects and configures a storage backend.
type Config = internalstorage.Config

// MemoryConfig configures the in-memory backend.
type MemoryConfig = internalstorage.MemoryConfig

// RedisConfig configures the Redis backend.
type RedisConfig = internalstorage.RedisConfig

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig = internalstorage.SQLiteConfig

// MemoryStorage is an in-memory storage backend.
type MemoryStorage = internalstorage.MemoryStorage

// RedisStorage is a Redis-backed storage backend.
type RedisStorage = internalstorage.RedisStorage

// SQLiteStorage is a SQLite-backed storage backend.
type SQLiteStorage = internalstorage.SQLiteStorage

const (
	BackendMemory = internalstorage.BackendMemory
	BackendRedis  = internalstorage.BackendRedis
	BackendSQLite = internalstorage.BackendSQLite
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = internalstorage.ErrUnknownBackend

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return internalstorage.DefaultConfig()
}

// Open constructs the backend named by cfg.Backend.
func Open(cfg Config, c clock.Clock) (Backend, error) {
	return internalstorage.Open(cfg, c)
}

// NewMemoryStorage creates a new in-memory storage using the given clock.
func NewMemoryStorage(c clock.Clock) *MemoryStorage {
	return internalstorage.NewMemoryStorage(c)
}

// NewRedisStorage connects to Redis.
func NewRedisStorage(cfg *RedisConfig) (*RedisStorage, error) {
	return internalstorage.NewRedisStorage(cfg)
}

// NewSQLiteStorage opens (or creates) a SQLite database.
func NewSQLiteStorage(cfg *SQLiteConfig, c clock.Clock) (*SQLiteStorage, error) {
	return internalstorage.NewSQLiteStorage(cfg, c)
}
