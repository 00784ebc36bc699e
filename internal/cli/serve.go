package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/config"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath   string
		addr         string
		baseURL      string
		recordFile   string
		historyLimit int
		eventsLog    string
		noWatch      bool
	)
	storageOpts := defaultStorageOptions()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the auto-refresh pages with a live dashboard",
		Long: `Starts the auto-refresh tasks of every configured page and serves them.

Endpoints:
  GET  /                          Server info and current time
  GET  /health                    Health check
  GET  /dashboard/                Live widget dashboard
  WS   /ws                        WebSocket for control sync and data
  GET  /api/pages                 All pages
  GET  /api/pages/{page}          Page settings, task state and refresh count
  PUT  /api/pages/{page}          Update {"update_active", "update_interval"}
  POST /api/pages/{page}/form     Apply the widget form and persist it
  POST /api/pages/{page}/stop     Stop the refresh task
  POST /api/pages/{page}/refresh  Refresh now
  POST /api/pages/{page}/block    Block or unblock automatic refresh
  GET  /api/pages/{page}/data     Last fetched data
  GET  /api/events                Refresh history

When a config file is given it is watched, and edits to a page's active,
interval or blocked values are applied to the running page.`,
		Example: `  autorefresh serve
  autorefresh serve --config autorefresh.json
  autorefresh serve --base-url http://shng:8383/plugins/database --storage sqlite
  autorefresh serve --record history.json --events-log events.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-url") {
				cfg.Poll.BaseURL = baseURL
			}
			if cmd.Flags().Changed("record") {
				cfg.Server.RecordFile = recordFile
			}
			if cmd.Flags().Changed("history-limit") {
				cfg.Server.HistoryLimit = historyLimit
			}

			clk := clock.NewRealClock()
			store, backend, err := openStore(cmd, &storageOpts, &cfg, clk)
			if err != nil {
				return err
			}
			defer backend.Close()

			var stream io.Writer
			if eventsLog != "" {
				f, err := os.OpenFile(eventsLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening events log: %w", err)
				}
				defer f.Close()
				stream = f
			}
			rec := recorder.New(stream).WithLimit(cfg.Server.HistoryLimit)
			srv := server.New(cfg.Server.Addr, clk, server.WithRecorder(rec))

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps := pageDeps{cfg: cfg, clock: clk, store: store, recorder: rec, logger: log.Default()}
			reloader := newPageReloader(log.Default(), cfg)
			defer reloader.stopAll()

			for _, pc := range cfg.Pages {
				out := &sink{}
				ctl, f, err := newPage(ctx, deps, pc, out)
				if err != nil {
					return err
				}
				out.add(srv.AddPage(&server.Page{Controller: ctl, Fetcher: f}))
				reloader.add(ctl)
				if err := ctl.Load(ctx); err != nil {
					return fmt.Errorf("loading page %s: %w", pc.Name, err)
				}
			}

			if configPath != "" && !noWatch {
				go func() {
					err := config.Watch(ctx, configPath, log.Default(), func(c config.Config) {
						reloader.apply(ctx, c)
					})
					if err != nil {
						log.Printf("config watch stopped: %v", err)
					}
				}()
			}

			printBanner(cmd, cfg)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Println("shutting down...")
				reloader.stopAll()
				// Export the refresh history if enabled.
				if cfg.Server.RecordFile != "" {
					log.Printf("exporting %d refresh events to %s", rec.Len(), cfg.Server.RecordFile)
					if err := rec.ExportFile(cfg.Server.RecordFile); err != nil {
						log.Printf("error exporting refresh events: %v", err)
					}
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to JSON config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL of the SmartHomeNG web interface")
	cmd.Flags().StringVar(&recordFile, "record", "", "export the refresh history to this JSON file on shutdown")
	cmd.Flags().IntVar(&historyLimit, "history-limit", 1000, "refresh events kept in memory (0 = all)")
	cmd.Flags().StringVar(&eventsLog, "events-log", "", "append every refresh event to this file as JSON lines")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file on change")
	storageOpts.addFlags(cmd)

	return cmd
}

func printBanner(cmd *cobra.Command, cfg config.Config) {
	w := cmd.OutOrStdout()
	addr := cfg.Server.Addr
	fmt.Fprintf(w, "\n  Autorefresh\n")
	fmt.Fprintf(w, "  ────────────────────────────────────\n")
	fmt.Fprintf(w, "  Dashboard:  http://localhost%s/dashboard/\n", addr)
	fmt.Fprintf(w, "  API:        http://localhost%s/api/pages\n", addr)
	fmt.Fprintf(w, "  WebSocket:  ws://localhost%s/ws\n", addr)
	fmt.Fprintf(w, "  Upstream:   %s\n", cfg.Poll.BaseURL)
	fmt.Fprintf(w, "  Storage:    %s\n", cfg.Storage.Backend)
	for _, pc := range cfg.Pages {
		state := "off"
		if pc.Active {
			state = "on"
		}
		fmt.Fprintf(w, "  Page:       %s (default %s, every %s)\n", pc.Name, state, pc.Interval)
	}
	fmt.Fprintf(w, "  ────────────────────────────────────\n\n")
}
