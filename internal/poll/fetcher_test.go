package poll

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestFetcher(t *testing.T, h http.HandlerFunc, mutate func(*Config), opts ...Option) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Rate = 0
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := New("plugin", cfg, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestFetcher_FetchJSON(t *testing.T) {
	var gotReq *http.Request
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"plugins":[{"name":"knx"}]}`))
	}, func(c *Config) {
		c.DataSet = "plugins_info"
		c.Params = "x=1"
	})

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotReq.URL.Path != "/get_data.html" {
		t.Errorf("path = %q, want /get_data.html", gotReq.URL.Path)
	}
	q := gotReq.URL.Query()
	if q.Get("dataSet") != "plugins_info" || q.Get("params") != "x=1" {
		t.Errorf("query = %q, want dataSet and params", gotReq.URL.RawQuery)
	}
	if got := gotReq.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}

	id := gotReq.Header.Get(HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request id %q is not a uuid: %v", id, err)
	}
	if snap.RequestID != id {
		t.Errorf("snapshot request id = %q, want %q", snap.RequestID, id)
	}

	if snap.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", snap.Status)
	}
	if string(snap.Data) != `{"plugins":[{"name":"knx"}]}` {
		t.Errorf("Data = %s", snap.Data)
	}
	if snap.Raw != "" {
		t.Errorf("Raw = %q, want empty", snap.Raw)
	}
	if f.Last() != snap {
		t.Error("Last() should return the fetched snapshot")
	}
}

func TestFetcher_NonJSONKeptRaw(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}, nil)

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Data != nil {
		t.Errorf("Data = %s, want nil", snap.Data)
	}
	if snap.Raw != "<html>not json</html>" {
		t.Errorf("Raw = %q", snap.Raw)
	}
}

func TestFetcher_StatusError(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}, nil)

	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrStatus) {
		t.Errorf("Fetch() error = %v, want ErrStatus", err)
	}
	if f.Last() != nil {
		t.Error("a failed fetch should not replace the last snapshot")
	}
}

func TestFetcher_BodyTooLarge(t *testing.T) {
	rec := recorder.New(nil)
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), maxBody+1))
	}, nil, WithRecorder(rec))

	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("Fetch() error = %v, want ErrBodyTooLarge", err)
	}
	if f.Last() != nil {
		t.Error("an oversized body should not be kept")
	}
	if e, ok := rec.Last("plugin"); !ok || e.OK() {
		t.Errorf("recorded event = %+v, want a failure", e)
	}
}

func TestFetcher_BodyAtLimit(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), maxBody))
	}, nil)

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(snap.Raw) != maxBody {
		t.Errorf("len(Raw) = %d, want %d", len(snap.Raw), maxBody)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(c *Config) { c.Timeout = 20 * time.Millisecond })
	defer close(release)

	if _, err := f.Fetch(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestFetcher_BasePath(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/admin/"
	f, err := New("plugin", cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := gotPath.Load(); got != "/admin/get_data.html" {
		t.Errorf("path = %v, want /admin/get_data.html", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"scheme", "ftp://example.com"},
		{"unparseable", "http://[::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseURL = tt.url
			if _, err := New("plugin", cfg); err == nil {
				t.Errorf("New(%q) should fail", tt.url)
			}
		})
	}
}

func TestFetcher_RateLimited(t *testing.T) {
	var hits atomic.Int32
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("{}"))
	}, func(c *Config) {
		c.Rate = 0.001
		c.Burst = 1
	})

	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx); err == nil {
		t.Error("second fetch should wait for a token")
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}
}

func TestFetcher_RecordsEvents(t *testing.T) {
	rec := recorder.New(nil)
	fail := atomic.Bool{}
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}, nil, WithRecorder(rec))

	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 500")
	}

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	ok := events[0]
	if !ok.OK() || ok.Page != "plugin" || ok.Size != len(`{"ok":true}`) || ok.RequestID == "" {
		t.Errorf("first event = %+v", ok)
	}
	if events[1].OK() || events[1].Status != http.StatusInternalServerError {
		t.Errorf("second event = %+v, want a 500 failure", events[1])
	}
}

func TestFetcher_CallbackSwallowsErrors(t *testing.T) {
	var fail atomic.Bool
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[1,2,3]`))
	}, nil)

	var handled []*Snapshot
	cb := f.Callback(context.Background(), func(s *Snapshot) { handled = append(handled, s) })

	cb()
	fail.Store(true)
	cb()

	if len(handled) != 1 {
		t.Fatalf("handled = %d snapshots, want 1", len(handled))
	}
	if string(handled[0].Data) != `[1,2,3]` {
		t.Errorf("Data = %s, want [1,2,3]", handled[0].Data)
	}
}

func TestFetcher_CallbackNilHandle(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	f.Callback(context.Background(), nil)()
	if f.Last() == nil {
		t.Error("Last() = nil, want the fetched snapshot")
	}
}
