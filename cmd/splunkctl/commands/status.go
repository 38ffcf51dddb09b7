package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/splunkctl/cmd/splunkctl/handlers"
)

// Status returns the command that reports the recorded cluster state.
func Status(flags *globalFlags) *cobra.Command {
	opts := handlers.StatusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded state of the cluster",
		Long: `Show the recorded state of every node of the cluster.

The state is read without taking the lease, so status can run while an
apply is in progress. With --audit every recorded instance is described
in EC2 and missing, stopped or mistagged instances are reported.

Examples:
  splunkctl status -c prod.yaml
  splunkctl status -c prod.yaml --audit --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Profile = flags.profile
			return handlers.Status(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: splunkctl.yaml)")
	cmd.Flags().BoolVar(&opts.Audit, "audit", false, "Compare recorded nodes against EC2")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", handlers.OutputText, "Output format (text, json)")

	return cmd
}
