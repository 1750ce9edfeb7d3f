// Package commands defines the cobra commands for the docdex binary.
package commands

import (
	"github.com/spf13/cobra"
)

// envName holds the --env flag value; empty falls back to the ENV variable.
var envName string

// NewRootCmd constructs the root command all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docdex",
		Short: "Document chunking and indexing pipeline",
		Long: `docdex ingests PDF documents into a Redis search index.

Each document is analyzed for layout, chunked, embedded, and indexed
together with verbalized descriptions of its figures. Configuration is
read from config/{env}.yaml; the environment comes from --env or the
ENV variable (default: local).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&envName, "env", "", `Configuration environment name (default: ENV variable or "local")`)

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewEnqueueCmd(),
		NewVersionCmd(),
	)

	return root
}
