package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second
)

// incrementScript increments a counter and sets its expiry only when the
// key was created by this call.
var incrementScript = redis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
local exp = tonumber(ARGV[2])
if exp > 0 and redis.call('PTTL', KEYS[1]) == -1 then
  redis.call('PEXPIRE', KEYS[1], exp)
end
return v
`)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Host         string        `mapstructure:"host" json:"host"`
	Port         int           `mapstructure:"port" json:"port"`
	Password     string        `mapstructure:"password" json:"password,omitempty"`
	DB           int           `mapstructure:"db" json:"db"`
	Cluster      bool          `mapstructure:"cluster" json:"cluster"`
	ClusterNodes []string      `mapstructure:"cluster_nodes" json:"cluster_nodes,omitempty"`
	PoolSize     int           `mapstructure:"pool_size" json:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries" json:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
}

// RedisStorage is a Redis-backed implementation of Storage.
// Expiry is enforced by Redis itself and follows wall-clock time.
type RedisStorage struct {
	client redis.UniversalClient

	closeOnce sync.Once
	closeErr  error
}

// NewRedisStorage constructs a Redis backend and verifies connectivity.
func NewRedisStorage(cfg *RedisConfig) (*RedisStorage, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	client := newRedisClient(conf)
	s := &RedisStorage{client: client}

	if err := s.pingWithRetry(context.Background(), conf.MaxRetries); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return s, nil
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte, exp time.Duration) error {
	if exp < 0 {
		exp = 0
	}
	if err := s.client.Set(ctx, key, value, exp).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Increment(ctx context.Context, key string, delta int64, exp time.Duration) (int64, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{key}, delta, exp.Milliseconds()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis increment %q: %w", key, err)
	}
	return asInt64(res)
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

// Close releases Redis resources. It is idempotent.
func (s *RedisStorage) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *RedisStorage) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := s.client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster-nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}

func asInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse int64 from %q: %w", x, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
