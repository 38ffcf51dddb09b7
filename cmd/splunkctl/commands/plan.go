package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/splunkctl/cmd/splunkctl/handlers"
)

// Plan returns the command that previews what apply would do.
func Plan(flags *globalFlags) *cobra.Command {
	opts := handlers.PlanOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the actions of the next apply",
		Long: `List every desired node with the action the next apply takes on it:
create, resume, retry or keep. Recorded nodes that are no longer desired
are listed as orphans. Plan reads the state without taking the lease and
changes nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Profile = flags.profile
			return handlers.Plan(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: splunkctl.yaml)")

	return cmd
}
