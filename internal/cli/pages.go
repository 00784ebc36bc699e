package cli

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/config"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/page"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/poll"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/refresh"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/settings"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/storage"
)

// loadConfig reads the config file (or only the environment and defaults
// when path is empty) and validates it.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore resolves the storage flags against cfg and opens the settings
// store on top of the chosen backend.
func openStore(cmd *cobra.Command, opts *storageOptions, cfg *config.Config, clk clock.Clock) (*settings.Store, storage.Backend, error) {
	sc, err := opts.resolve(cmd, &cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.Open(sc, clk)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s storage: %w", sc.Backend, err)
	}
	cfg.Storage = sc
	return settings.New(backend), backend, nil
}

// pageDeps are shared by every page of one process.
type pageDeps struct {
	cfg      config.Config
	clock    clock.Clock
	store    *settings.Store
	recorder *recorder.Recorder
	logger   *log.Logger
}

// newPage builds the fetcher, refresh task and controller of one page. The
// task repeats, fetching the page data on every run and handing the result
// to out.
func newPage(ctx context.Context, deps pageDeps, pc config.PageConfig, out *sink) (*page.Controller, *poll.Fetcher, error) {
	pollCfg := deps.cfg.Poll
	pollCfg.DataSet = pc.DataSet
	pollCfg.Params = pc.Params

	f, err := poll.New(pc.Name, pollCfg,
		poll.WithLogger(deps.logger),
		poll.WithRecorder(deps.recorder),
		poll.WithClock(deps.clock),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("page %s: %w", pc.Name, err)
	}

	task := refresh.New(pc.Name, deps.clock,
		refresh.WithLogger(deps.logger),
		refresh.WithRepeat(refresh.RepeatForever),
	)
	ctl := page.New(pc.Name, task, deps.store,
		page.WithLogger(deps.logger),
		page.WithDefaults(page.Settings{Active: pc.Active, Interval: pc.Interval}),
		page.WithBlocked(pc.Blocked),
		page.WithWork(f.Callback(ctx, out.publish)),
	)
	return ctl, f, nil
}

// sink fans fetched snapshots out to the consumers registered after the
// page was built.
type sink struct {
	mu  sync.RWMutex
	fns []func(*poll.Snapshot)
}

func (s *sink) add(fn func(*poll.Snapshot)) {
	s.mu.Lock()
	s.fns = append(s.fns, fn)
	s.mu.Unlock()
}

func (s *sink) publish(snap *poll.Snapshot) {
	s.mu.RLock()
	fns := append(([]func(*poll.Snapshot))(nil), s.fns...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// pageChanges returns the widget values that differ between two versions of
// a page's configuration.
func pageChanges(old, cur config.PageConfig) page.Params {
	var p page.Params
	if old.Active != cur.Active {
		active := cur.Active
		p.Active = &active
	}
	if old.Interval != cur.Interval {
		interval := cur.Interval
		p.Interval = &interval
	}
	return p
}

// pageReloader applies edits of the config file to running pages.
type pageReloader struct {
	logger *log.Logger

	mu    sync.Mutex
	pages map[string]*page.Controller
	prev  map[string]config.PageConfig
}

func newPageReloader(logger *log.Logger, cfg config.Config) *pageReloader {
	r := &pageReloader{
		logger: logger,
		pages:  make(map[string]*page.Controller),
		prev:   make(map[string]config.PageConfig),
	}
	for _, pc := range cfg.Pages {
		r.prev[pc.Name] = pc
	}
	return r
}

func (r *pageReloader) add(ctl *page.Controller) {
	r.mu.Lock()
	r.pages[ctl.Name()] = ctl
	r.mu.Unlock()
}

// apply updates the controllers whose page entry changed. Pages added to or
// removed from the file take effect on the next start.
func (r *pageReloader) apply(ctx context.Context, cfg config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pc := range cfg.Pages {
		ctl, ok := r.pages[pc.Name]
		if !ok {
			r.logger.Printf("config reload: page %s is new, restart to serve it", pc.Name)
			continue
		}
		old := r.prev[pc.Name]
		r.prev[pc.Name] = pc

		if old.Blocked != pc.Blocked {
			ctl.Block(pc.Blocked)
		}
		p := pageChanges(old, pc)
		if p.Active == nil && p.Interval == nil {
			continue
		}
		if err := ctl.Update(ctx, p); err != nil {
			r.logger.Printf("config reload: page %s: %v", pc.Name, err)
		}
	}
}

func (r *pageReloader) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ctl := range r.pages {
		ctl.Task().Stop()
	}
}
