package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root autorefresh command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "autorefresh",
		Short: "Periodic auto-refresh for SmartHomeNG web interface pages",
		Long: `Autorefresh keeps the data of SmartHomeNG web interface pages up to date.

Every page has an auto-refresh widget: an "active" switch and a refresh
interval in seconds. Both are persisted per page and mirrored to the web
dashboard and the terminal view.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newPollCmd(),
		newWatchCmd(),
		newSettingsCmd(),
		newConfigCmd(),
		newSimulateCmd(),
		newHistoryCmd(),
	)

	return root
}
