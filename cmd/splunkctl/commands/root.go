// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/imamik/splunkctl/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel  string
	logFormat string
	profile   string
}

// Root returns the root command for the splunkctl CLI.
//
// The root command builds the process logger from the global flags and
// attaches it to the command context before any subcommand runs.
func Root() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "splunkctl",
		Short:         "Bootstrap Splunk clusters on AWS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.New(logging.Options{
				Level:  flags.logLevel,
				Format: flags.logFormat,
				Output: os.Stderr,
			})
			if err != nil {
				return err
			}
			cmd.SetContext(logr.NewContext(cmd.Context(), log))
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", logging.FormatAuto, "Log format (auto, console, json)")
	pf.StringVar(&flags.profile, "profile", "", "AWS shared config profile (overrides aws.profile)")

	cmd.AddCommand(Init())
	cmd.AddCommand(Apply(flags))
	cmd.AddCommand(Status(flags))
	cmd.AddCommand(Plan(flags))
	cmd.AddCommand(Unlock(flags))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
