package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/splunkctl/cmd/splunkctl/handlers"
)

// Apply returns the command that provisions and bootstraps the cluster.
//
// Optional flags:
//
//	--config, -c: Path to cluster definition YAML (default: auto-detect splunkctl.yaml)
//	--metrics-file: Write Prometheus metrics of the run to this file
func Apply(flags *globalFlags) *cobra.Command {
	opts := handlers.ApplyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or resume the cluster",
		Long: `Create or resume a Splunk cluster.

Nodes are provisioned tier by tier: the cluster master first, then the
deployer, the indexers and the search heads. Every node that reaches ready
is left alone by later runs; failed and interrupted nodes are retried.

If no config file is specified, splunkctl.yaml is looked up in the current
directory and its parents.

Examples:
  # Apply using splunkctl.yaml
  splunkctl apply

  # Apply a specific cluster and export run metrics
  splunkctl apply -c prod.yaml --metrics-file /var/lib/node_exporter/splunkctl.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Profile = flags.profile
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: splunkctl.yaml)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format")

	return cmd
}
