package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/splunkctl/cmd/splunkctl/handlers"
	"github.com/imamik/splunkctl/internal/config"
)

// Init returns the command for interactively creating a cluster definition.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a cluster definition",
		Long: `Interactively create a cluster definition file.

The wizard asks for the cluster name and region, the archive bucket, the
network placement, the node counts per role and the bootstrap executor.
Every default is written out so the file can be edited afterwards.

Example:
  splunkctl init -o prod.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigFile, "Output file path")

	return cmd
}
