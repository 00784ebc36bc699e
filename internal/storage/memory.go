package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/refresh"
)

// MemoryStorage is an in-memory storage backend backed by a map.
// It uses a Clock for expiration checks, enabling virtual-time testing.
// Thread-safe for concurrent use.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]memItem
	clock clock.Clock

	cleanup *refresh.Task
}

type memItem struct {
	value     []byte
	expiresAt time.Time // zero value means no expiration
}

// NewMemoryStorage creates a new in-memory storage using the given clock.
func NewMemoryStorage(c clock.Clock) *MemoryStorage {
	return &MemoryStorage{
		items: make(map[string]memItem),
		clock: c,
	}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok || s.expired(item) {
		return nil, nil
	}
	val := make([]byte, len(item.value))
	copy(val, item.value)
	return val, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte, exp time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := memItem{
		value: make([]byte, len(value)),
	}
	copy(item.value, value)

	if exp > 0 {
		item.expiresAt = s.clock.Now().Add(exp)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStorage) Increment(_ context.Context, key string, delta int64, exp time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64

	item, ok := s.items[key]
	if ok && !s.expired(item) {
		n, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("key %q does not hold a counter: %w", key, err)
		}
		current = n
	} else {
		item = memItem{}
		if exp > 0 {
			item.expiresAt = s.clock.Now().Add(exp)
		}
	}

	current += delta
	item.value = []byte(strconv.FormatInt(current, 10))
	s.items[key] = item

	return current, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Cleanup removes all expired items.
func (s *MemoryStorage) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range s.items {
		if s.expired(item) {
			delete(s.items, key)
		}
	}
}

// StartCleanup runs Cleanup every interval on the storage clock until Close.
func (s *MemoryStorage) StartCleanup(interval time.Duration) error {
	s.mu.Lock()
	if s.cleanup == nil {
		s.cleanup = refresh.New("memory-cleanup", s.clock)
	}
	task := s.cleanup
	s.mu.Unlock()

	return task.Start(s.Cleanup, interval, false, refresh.RepeatForever)
}

// Close stops the cleanup loop. Stored items stay readable.
func (s *MemoryStorage) Close() error {
	s.mu.RLock()
	task := s.cleanup
	s.mu.RUnlock()

	if task != nil {
		task.Stop()
	}
	return nil
}

// Len returns the number of items (including expired ones not yet cleaned up).
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// expired must be called with s.mu held.
func (s *MemoryStorage) expired(item memItem) bool {
	return !item.expiresAt.IsZero() && !s.clock.Now().Before(item.expiresAt)
}
