// Package main is the entry point for the splunkctl CLI.
//
// splunkctl bootstraps multi-role Splunk clusters on AWS from a declarative
// cluster definition. Runs are idempotent: state is kept in S3 behind a
// DynamoDB lease and every invocation resumes from the last checkpoint.
//
// Commands: apply, status, plan, unlock, version.
//
// For detailed usage information, run:
//
//	splunkctl --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/splunkctl/cmd/splunkctl/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
