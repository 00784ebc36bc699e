// Package settings persists the auto-refresh widget's values per page.
//
// Values are stored JSON-encoded under page-scoped keys with a lifetime in
// days, the way the web interface keeps them in cookies: writing with zero
// days deletes the value, and a value that fails to decode is handed back as
// a raw string.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/storage"
)

// Widget value names.
const (
	KeyActive   = "update_active"
	KeyInterval = "update_interval"
)

const keyRefreshes = "refresh_count"

// DefaultDays is the lifetime of a stored value.
const DefaultDays = 365

const day = 24 * time.Hour

// Store reads and writes page-scoped values on a storage backend.
type Store struct {
	backend storage.Storage
	prefix  string
}

// New creates a Store on backend.
func New(backend storage.Storage) *Store {
	return &Store{
		backend: backend,
		prefix:  "autorefresh",
	}
}

// Key returns the backend key for a page value.
func (s *Store) Key(page, name string) string {
	return s.prefix + ":" + page + ":" + name
}

// Set stores value for days. Zero or negative days deletes the value.
func (s *Store) Set(ctx context.Context, page, name string, value any, days int) error {
	key := s.Key(page, name)
	if days <= 0 {
		if err := s.backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("deleting %s for page %s: %w", name, page, err)
		}
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		// Unencodable values are stored in their printed form.
		data = []byte(fmt.Sprint(value))
	}
	if err := s.backend.Set(ctx, key, data, time.Duration(days)*day); err != nil {
		return fmt.Errorf("setting %s for page %s: %w", name, page, err)
	}
	return nil
}

// Get returns the decoded value. ok is false when nothing is stored.
// A value that is not valid JSON is returned as its raw string.
func (s *Store) Get(ctx context.Context, page, name string) (value any, ok bool, err error) {
	raw, err := s.backend.Get(ctx, s.Key(page, name))
	if err != nil {
		return nil, false, fmt.Errorf("reading %s for page %s: %w", name, page, err)
	}
	if raw == nil {
		return nil, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw), true, nil
	}
	return value, true, nil
}

// Active returns the stored active flag.
func (s *Store) Active(ctx context.Context, page string) (active bool, ok bool, err error) {
	v, ok, err := s.Get(ctx, page, KeyActive)
	if err != nil || !ok {
		return false, ok, err
	}
	b, ok := asBool(v)
	return b, ok, nil
}

// Interval returns the stored interval. It is kept in milliseconds.
func (s *Store) Interval(ctx context.Context, page string) (interval time.Duration, ok bool, err error) {
	v, ok, err := s.Get(ctx, page, KeyInterval)
	if err != nil || !ok {
		return 0, ok, err
	}
	ms, ok := asFloat(v)
	if !ok || ms < 0 {
		return 0, false, nil
	}
	return time.Duration(ms * float64(time.Millisecond)), true, nil
}

// SetActive stores the active flag for DefaultDays.
func (s *Store) SetActive(ctx context.Context, page string, active bool) error {
	return s.Set(ctx, page, KeyActive, active, DefaultDays)
}

// SetInterval stores the interval in milliseconds for DefaultDays.
func (s *Store) SetInterval(ctx context.Context, page string, interval time.Duration) error {
	return s.Set(ctx, page, KeyInterval, interval.Milliseconds(), DefaultDays)
}

// Clear deletes both widget values for page.
func (s *Store) Clear(ctx context.Context, page string) error {
	for _, name := range []string{KeyActive, KeyInterval} {
		if err := s.Set(ctx, page, name, nil, 0); err != nil {
			return err
		}
	}
	return nil
}

// CountRefresh increments and returns the page's refresh counter.
func (s *Store) CountRefresh(ctx context.Context, page string) (int64, error) {
	n, err := s.backend.Increment(ctx, s.Key(page, keyRefreshes), 1, 0)
	if err != nil {
		return 0, fmt.Errorf("counting refresh for page %s: %w", page, err)
	}
	return n, nil
}

// Refreshes returns the page's refresh counter without changing it.
func (s *Store) Refreshes(ctx context.Context, page string) (int64, error) {
	raw, err := s.backend.Get(ctx, s.Key(page, keyRefreshes))
	if err != nil {
		return 0, fmt.Errorf("reading refresh count for page %s: %w", page, err)
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("refresh count for page %s is not a number: %w", page, err)
	}
	return n, nil
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	case float64:
		return x != 0, true
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
