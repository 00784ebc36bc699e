package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
)

func newTestSQLite(t *testing.T) (*SQLiteStorage, *clock.VirtualClock) {
	t.Helper()
	vc := clock.NewVirtualClock(epoch)
	s, err := NewSQLiteStorage(&SQLiteConfig{Path: ":memory:"}, vc)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, vc
}

func TestSQLiteStorage_VirtualExpiry(t *testing.T) {
	s, vc := newTestSQLite(t)

	if err := s.Set(ctx, "key1", []byte("value"), 10*time.Second); err != nil {
		t.Fatal(err)
	}
	vc.Advance(9 * time.Second)
	if val, _ := s.Get(ctx, "key1"); string(val) != "value" {
		t.Fatalf("Get() before expiry = %q, want %q", val, "value")
	}

	vc.Advance(time.Second)
	if val, _ := s.Get(ctx, "key1"); val != nil {
		t.Errorf("Get() at expiry = %q, want nil", val)
	}
}

func TestSQLiteStorage_IncrementRestartsAfterExpiry(t *testing.T) {
	s, vc := newTestSQLite(t)

	s.Increment(ctx, "counter", 5, 10*time.Second)
	vc.Advance(11 * time.Second)

	n, err := s.Increment(ctx, "counter", 1, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Increment after expiry = %d, want 1", n)
	}
}

func TestSQLiteStorage_Cleanup(t *testing.T) {
	s, vc := newTestSQLite(t)

	s.Set(ctx, "a", []byte("v"), 5*time.Second)
	s.Set(ctx, "b", []byte("v"), 0)
	vc.Advance(6 * time.Second)

	n, err := s.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Cleanup() removed %d rows, want 1", n)
	}
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	vc := clock.NewVirtualClock(epoch)

	s, err := NewSQLiteStorage(&SQLiteConfig{Path: path}, vc)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "key1", []byte("kept"), 0); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStorage(&SQLiteConfig{Path: path}, vc)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if val, _ := s.Get(ctx, "key1"); string(val) != "kept" {
		t.Errorf("Get() after reopen = %q, want %q", val, "kept")
	}
}

func TestSQLiteStorage_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStorage(&SQLiteConfig{}, clock.NewRealClock()); err == nil {
		t.Error("empty path should be rejected")
	}
}

func TestOpen_Backends(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)

	mem, err := Open(Config{Backend: BackendMemory, Memory: MemoryConfig{CleanupInterval: time.Minute}}, vc)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := mem.(*MemoryStorage); !ok {
		t.Errorf("Open(memory) = %T, want *MemoryStorage", mem)
	}
	mem.Close()

	lite, err := Open(Config{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: ":memory:"}}, vc)
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	lite.Close()

	if _, err := Open(Config{Backend: "etcd"}, vc); err == nil {
		t.Error("Open(etcd) should fail")
	}
}
