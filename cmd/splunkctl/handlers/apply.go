package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/metrics"
	"github.com/imamik/splunkctl/internal/orchestration"
	"github.com/imamik/splunkctl/internal/provisioning"
	"github.com/imamik/splunkctl/internal/provisioning/bootstrap"
	"github.com/imamik/splunkctl/internal/provisioning/compute"
	"github.com/imamik/splunkctl/internal/state"
	"github.com/imamik/splunkctl/internal/status"
)

// ApplyOptions are the inputs of the apply command.
type ApplyOptions struct {
	ConfigPath  string
	Profile     string
	MetricsFile string
}

// Reconciler interface for testing - matches orchestration.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context) (*orchestration.Result, error)
}

// newReconciler creates the orchestration reconciler (for testing injection).
var newReconciler = func(
	cfg *config.Config,
	coordinator state.Coordinator,
	backend compute.Backend,
	exec bootstrap.Executor,
	observer provisioning.Observer,
	recorder *metrics.Recorder,
	timeouts *config.Timeouts,
) Reconciler {
	configurator := bootstrap.NewConfigurator(exec, bootstrap.SettingsFrom(cfg, timeouts))
	return orchestration.NewReconciler(cfg, coordinator, compute.NewDriver(backend), configurator,
		orchestration.WithObserver(observer),
		orchestration.WithMetrics(recorder),
		orchestration.WithTimeouts(timeouts),
	)
}

// Apply provisions and bootstraps the cluster described by the config file.
//
// The workflow is:
//  1. Load and validate the cluster definition
//  2. Run pre-flight checks (SSH key, state bucket, instance profile, topology warnings)
//  3. Create the S3/DynamoDB coordinator, the EC2 client and the executor
//  4. Reconcile every tier, checkpointing the state after each one
//  5. Write the metrics file, if requested, and print the cluster status
//
// Apply returns an error wrapping orchestration.ErrNodesFailed when the run
// finished but some nodes ended failed.
func Apply(ctx context.Context, opts ApplyOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	log := logr.FromContextOrDiscard(ctx).WithValues("cluster", cfg.Cluster.Name)
	observer := provisioning.NewLogrObserver(log)

	profile := awsProfile(cfg, opts.Profile)
	bucket, err := newStateBucket(ctx, cfg, profile)
	if err != nil {
		return err
	}

	pctx := provisioning.NewContext(ctx, cfg, observer)
	validation := provisioning.NewValidationPhase().WithStateBucket(bucket)
	if err := provisioning.RunPhases(pctx, []provisioning.Phase{validation}); err != nil {
		return err
	}

	coordinator, err := newCoordinator(ctx, cfg, profile)
	if err != nil {
		return err
	}
	backend, err := newComputeBackend(ctx, cfg, profile)
	if err != nil {
		return err
	}
	exec, err := newExecutor(ctx, cfg, profile)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	log.Info("applying cluster definition", "nodes", cfg.TotalNodes(), "executor", cfg.Bootstrap.Executor)

	res, runErr := newReconciler(cfg, coordinator, backend, exec, observer, recorder, pctx.Timeouts).Reconcile(ctx)

	if opts.MetricsFile != "" {
		if err := recorder.WriteTextfile(opts.MetricsFile); err != nil {
			log.Error(err, "failed to write metrics file", "path", opts.MetricsFile)
		}
	}

	if res != nil && res.State != nil {
		if err := printApplySummary(res, pctx.Timeouts); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("apply failed: %w", runErr)
	}
	if !res.OK() {
		names := make([]string, 0, len(res.Failed))
		for _, n := range res.Failed {
			names = append(names, fmt.Sprintf("%s (%s)", n.Name, n.FailureCause))
		}
		return fmt.Errorf("%w: %s", orchestration.ErrNodesFailed, strings.Join(names, ", "))
	}

	log.Info("cluster is ready", "allocated", res.Allocated, "version", res.Version)
	return nil
}

// printApplySummary renders the state reached by the run.
func printApplySummary(res *orchestration.Result, timeouts *config.Timeouts) error {
	reporter := status.NewReporter(timeouts.StaleGrace)
	reporter.Now = now
	report := reporter.Report(res.State)
	report.Orphans = res.Orphans

	if err := status.Render(stdout, report, colorEnabled()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nAllocated %d instance(s), state version %d\n", res.Allocated, res.Version)
	if len(res.Unreachable) > 0 {
		fmt.Fprintf(stdout, "Unreachable ready nodes: %s\n", strings.Join(res.Unreachable, ", "))
	}
	return nil
}

// colorEnabled reports whether stdout is a terminal that accepts color.
func colorEnabled() bool {
	f, ok := stdout.(*os.File)
	return ok && status.ShouldColor(f)
}
