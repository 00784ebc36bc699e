package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/tui"
)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		baseURL    string
		logFile    string
	)
	storageOpts := defaultStorageOptions()

	cmd := &cobra.Command{
		Use:   "watch <page>",
		Short: "Show a page's auto-refresh widget in the terminal",
		Long: `Runs the auto-refresh task of one page and shows its widget and latest
data in the terminal. The widget values are loaded from and saved to the
same storage the server uses, so a page configured here refreshes the same
way in the dashboard.

Keys: space toggles auto refresh, + and - change the interval by one
second, r refreshes now, q quits.`,
		Example: `  autorefresh watch plugins
  autorefresh watch plugins --storage sqlite --sqlite-path autorefresh.db
  autorefresh watch logics --config autorefresh.json --log-file watch.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("base-url") {
				cfg.Poll.BaseURL = baseURL
			}
			pc, ok := cfg.Page(args[0])
			if !ok {
				return fmt.Errorf("page %q is not configured", args[0])
			}

			// The terminal belongs to the widget, so logs go to a file or nowhere.
			logger := log.New(io.Discard, "", 0)
			if logFile != "" {
				f, err := tea.LogToFile(logFile, "autorefresh")
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				logger = log.Default()
			}

			clk := clock.NewRealClock()
			store, backend, err := openStore(cmd, &storageOpts, &cfg, clk)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &sink{}
			deps := pageDeps{cfg: cfg, clock: clk, store: store, logger: logger}
			ctl, _, err := newPage(ctx, deps, pc, out)
			if err != nil {
				return err
			}
			defer ctl.Task().Stop()

			prog := tui.NewProgram(ctx, ctl, tea.WithAltScreen())
			out.add(prog.Publish)
			if err := ctl.Load(ctx); err != nil {
				return fmt.Errorf("loading page %s: %w", pc.Name, err)
			}
			return prog.Run()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to JSON config file")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL of the SmartHomeNG web interface")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	storageOpts.addFlags(cmd)

	return cmd
}

