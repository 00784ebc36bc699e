package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/settings"
)

// StoredSettings is the persisted widget state of a page. Nil fields have
// not been stored.
type StoredSettings struct {
	Page            string   `json:"page"`
	Active          *bool    `json:"active"`
	IntervalSeconds *float64 `json:"interval_seconds"`
	Refreshes       int64    `json:"refreshes"`
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit the persisted widget settings of a page",
	}
	cmd.AddCommand(
		newSettingsGetCmd(),
		newSettingsSetCmd(),
		newSettingsClearCmd(),
	)
	return cmd
}

// settingsCommand builds a settings subcommand that runs fn against the
// configured store.
func settingsCommand(use, short string, fn func(cmd *cobra.Command, store *settings.Store, page string) error) *cobra.Command {
	var configPath string
	storageOpts := defaultStorageOptions()

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, backend, err := openStore(cmd, &storageOpts, &cfg, clock.NewRealClock())
			if err != nil {
				return err
			}
			defer backend.Close()
			return fn(cmd, store, args[0])
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to JSON config file")
	storageOpts.addFlags(cmd)
	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	cmd := settingsCommand("get <page>", "Print the stored settings of a page",
		func(cmd *cobra.Command, store *settings.Store, page string) error {
			s, err := readStoredSettings(cmd, store, page)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		})
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	var (
		active   bool
		interval time.Duration
		days     int
	)
	cmd := settingsCommand("set <page>", "Store the settings of a page",
		func(cmd *cobra.Command, store *settings.Store, page string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("active") && !cmd.Flags().Changed("interval") {
				return fmt.Errorf("nothing to set, give --active or --interval")
			}
			if cmd.Flags().Changed("interval") {
				if interval < 0 {
					return fmt.Errorf("interval must not be negative, got %s", interval)
				}
				if err := store.Set(ctx, page, settings.KeyInterval, interval.Milliseconds(), days); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("active") {
				if err := store.Set(ctx, page, settings.KeyActive, active, days); err != nil {
					return err
				}
			}
			return nil
		})
	cmd.Long = `Stores the widget settings of a page as the page itself would on
applying its form. A running server picks them up on its next start.`
	cmd.Example = `  autorefresh settings set plugins --active --interval 5s
  autorefresh settings set plugins --active=false --storage sqlite
  autorefresh settings set logics --interval 1m --days 30`
	cmd.Flags().BoolVar(&active, "active", false, "automatic refresh on or off")
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh interval")
	cmd.Flags().IntVar(&days, "days", settings.DefaultDays, "days until the settings expire (0 deletes)")
	return cmd
}

func newSettingsClearCmd() *cobra.Command {
	cmd := settingsCommand("clear <page>", "Remove the stored settings of a page",
		func(cmd *cobra.Command, store *settings.Store, page string) error {
			return store.Clear(cmd.Context(), page)
		})
	return cmd
}

func readStoredSettings(cmd *cobra.Command, store *settings.Store, page string) (StoredSettings, error) {
	ctx := cmd.Context()
	s := StoredSettings{Page: page}

	active, ok, err := store.Active(ctx, page)
	if err != nil {
		return s, err
	}
	if ok {
		s.Active = &active
	}
	interval, ok, err := store.Interval(ctx, page)
	if err != nil {
		return s, err
	}
	if ok {
		secs := interval.Seconds()
		s.IntervalSeconds = &secs
	}
	s.Refreshes, err = store.Refreshes(ctx, page)
	return s, err
}
