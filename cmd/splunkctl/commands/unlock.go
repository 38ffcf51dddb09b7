package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/splunkctl/cmd/splunkctl/handlers"
)

// Unlock returns the command that removes a stuck cluster lease.
func Unlock(flags *globalFlags) *cobra.Command {
	opts := handlers.UnlockOptions{}

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Remove the cluster lease",
		Long: `Remove the lease of the cluster regardless of who holds it.

Use this only when a run died without releasing its lease and you cannot
wait for it to expire. Removing the lease of a live run lets a second run
start next to it.

Example:
  splunkctl unlock -c prod.yaml --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Profile = flags.profile
			return handlers.Unlock(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: splunkctl.yaml)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Confirm removal of the lease")

	return cmd
}
