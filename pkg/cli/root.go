// Package cli exposes the autorefresh command tree for embedding.
package cli

import (
	"github.com/spf13/cobra"

	internalcli "github.com/SmitUplenchwar2687/Autorefresh/internal/cli"
)

// NewRootCmd creates the public autorefresh root command for embedding.
func NewRootCmd() *cobra.Command {
	return internalcli.NewRootCmd()
}
