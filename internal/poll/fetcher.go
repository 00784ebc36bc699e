// Package poll fetches a page's data from the web interface backend. It is
// the work a page runs on every refresh.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/refresh"
)

const (
	// DataPath is the backend endpoint serving page data.
	DataPath = "get_data.html"

	// HeaderRequestID carries the id of a fetch.
	HeaderRequestID = "X-Request-ID"

	maxBody = 8 << 20
)

// ErrStatus is returned when the backend answers with a non-2xx status.
var ErrStatus = errors.New("poll: unexpected status")

// ErrBodyTooLarge is returned when a response body exceeds 8 MiB.
var ErrBodyTooLarge = errors.New("poll: response body too large")

// Config describes where and how often data is fetched.
type Config struct {
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	DataSet string        `mapstructure:"data_set" json:"data_set,omitempty"`
	Params  string        `mapstructure:"params" json:"params,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// Rate is the maximum number of fetches per second. Zero is unlimited.
	Rate  float64 `mapstructure:"rate" json:"rate"`
	Burst int     `mapstructure:"burst" json:"burst"`
}

// DefaultConfig returns a Config for a backend on localhost.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8383",
		Timeout: 10 * time.Second,
		Rate:    2,
		Burst:   1,
	}
}

// Snapshot is the result of one fetch.
type Snapshot struct {
	Page      string          `json:"page"`
	RequestID string          `json:"request_id"`
	FetchedAt time.Time       `json:"fetched_at"`
	Status    int             `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Raw       string          `json:"raw,omitempty"`
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRecorder records an event for every fetch.
func WithRecorder(r *recorder.Recorder) Option {
	return func(f *Fetcher) {
		f.recorder = r
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.clock = c
		}
	}
}

// Fetcher fetches one page's data.
type Fetcher struct {
	page     string
	cfg      Config
	endpoint *url.URL
	client   *http.Client
	limiter  *rate.Limiter
	clock    clock.Clock
	logger   *log.Logger
	recorder *recorder.Recorder
	last     atomic.Pointer[Snapshot]
}

// New creates a Fetcher for page.
func New(page string, cfg Config, opts ...Option) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("poll: base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("poll: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("poll: unsupported scheme %q", base.Scheme)
	}

	endpoint := *base
	endpoint.Path = path.Join("/", base.Path, DataPath)
	q := endpoint.Query()
	if cfg.DataSet != "" {
		q.Set("dataSet", cfg.DataSet)
	}
	if cfg.Params != "" {
		q.Set("params", cfg.Params)
	}
	endpoint.RawQuery = q.Encode()

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	f := &Fetcher{
		page:     page,
		cfg:      cfg,
		endpoint: &endpoint,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(limit, burst),
		clock:    clock.NewRealClock(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// URL returns the endpoint fetched.
func (f *Fetcher) URL() string {
	return f.endpoint.String()
}

// Last returns the most recent successful snapshot, or nil.
func (f *Fetcher) Last() *Snapshot {
	return f.last.Load()
}

// Fetch waits for the rate limiter and fetches the page data once.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("poll: waiting for rate limiter: %w", err)
	}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	id := uuid.NewString()
	start := f.clock.Now()
	snap, size, err := f.do(ctx, id)
	f.record(recorder.Event{
		Time:      start,
		Page:      f.page,
		RequestID: id,
		Status:    statusOf(snap),
		Size:      size,
		Duration:  f.clock.Since(start),
		Error:     errString(err),
	})
	if err != nil {
		return nil, err
	}

	snap.FetchedAt = start
	f.last.Store(snap)
	return snap, nil
}

func (f *Fetcher) do(ctx context.Context, id string) (*Snapshot, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("poll: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, id)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("poll: fetching %s: %w", f.page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	snap := &Snapshot{Page: f.page, RequestID: id, Status: resp.StatusCode}
	if err != nil {
		return snap, len(body), fmt.Errorf("poll: reading %s: %w", f.page, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return snap, len(body), fmt.Errorf("%w %d fetching %s", ErrStatus, resp.StatusCode, f.page)
	}
	if len(body) > maxBody {
		return snap, len(body), fmt.Errorf("%w fetching %s", ErrBodyTooLarge, f.page)
	}

	if json.Valid(body) {
		snap.Data = json.RawMessage(body)
	} else {
		snap.Raw = string(body)
	}
	return snap, len(body), nil
}

// Callback returns work for a refresh task. Every run fetches and passes the
// snapshot to handle. Failures are logged and otherwise ignored.
func (f *Fetcher) Callback(ctx context.Context, handle func(*Snapshot)) refresh.Func {
	return func() {
		snap, err := f.Fetch(ctx)
		if err != nil {
			f.logger.Printf("warning: refresh of %s failed: %v", f.page, err)
			return
		}
		if handle != nil {
			handle(snap)
		}
	}
}

func (f *Fetcher) record(e recorder.Event) {
	if f.recorder == nil {
		return
	}
	if err := f.recorder.Record(e); err != nil {
		f.logger.Printf("warning: recording refresh of %s: %v", f.page, err)
	}
}

func statusOf(s *Snapshot) int {
	if s == nil {
		return 0
	}
	return s.Status
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
