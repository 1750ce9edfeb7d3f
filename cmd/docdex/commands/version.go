package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyon-data/docdex/internal/version"
)

// NewVersionCmd constructs the `docdex version` subcommand. It prints
// the binary version, git commit, and build date injected via -ldflags.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docdex version, git commit, and build date",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("docdex %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
