package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/nodes"
	"github.com/imamik/splunkctl/internal/status"
)

// StatusOptions are the inputs of the status command.
type StatusOptions struct {
	ConfigPath string
	Profile    string
	Audit      bool
	Output     string
}

// Status prints the recorded state of the cluster. It does not take the
// lease and never changes anything.
func Status(ctx context.Context, opts StatusOptions) error {
	if opts.Output == "" {
		opts.Output = OutputText
	}
	if opts.Output != OutputText && opts.Output != OutputJSON {
		return fmt.Errorf("invalid output format %q: must be %s or %s", opts.Output, OutputText, OutputJSON)
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	profile := awsProfile(cfg, opts.Profile)

	coordinator, err := newCoordinator(ctx, cfg, profile)
	if err != nil {
		return err
	}
	st, err := coordinator.Load(ctx, cfg.Cluster.Name)
	if err != nil {
		return fmt.Errorf("failed to load state of %s: %w", cfg.Cluster.Name, err)
	}

	reporter := status.NewReporter(config.LoadTimeouts().StaleGrace)
	reporter.Now = now
	descs := nodes.Build(cfg)

	report := reporter.Report(st)
	report.Compare(st, descs)

	if opts.Audit {
		backend, err := newComputeBackend(ctx, cfg, profile)
		if err != nil {
			return err
		}
		findings, err := reporter.Audit(ctx, backend, st, descs)
		if err != nil {
			return fmt.Errorf("audit failed: %w", err)
		}
		report.Findings = findings
	}

	if opts.Output == OutputJSON {
		return status.RenderJSON(stdout, report)
	}
	return status.Render(stdout, report, colorEnabled())
}
