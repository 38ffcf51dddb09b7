package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/splunkctl/internal/nodes"
)

// PlanOptions are the inputs of the plan command.
type PlanOptions struct {
	ConfigPath string
	Profile    string
}

// Plan prints the action the next apply takes on every node.
func Plan(ctx context.Context, opts PlanOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	coordinator, err := newCoordinator(ctx, cfg, awsProfile(cfg, opts.Profile))
	if err != nil {
		return err
	}
	st, err := coordinator.Load(ctx, cfg.Cluster.Name)
	if err != nil {
		return fmt.Errorf("failed to load state of %s: %w", cfg.Cluster.Name, err)
	}

	entries := nodes.Plan(st, nodes.Build(cfg))
	fmt.Fprint(stdout, renderPlan(cfg.Cluster.Name, st.Version, entries))
	return nil
}

func renderPlan(cluster string, version int64, entries []nodes.PlanEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan for cluster %s (state version %d)\n\n", cluster, version)

	width := len("NODE")
	for _, e := range entries {
		width = max(width, len(e.Name))
	}
	row := fmt.Sprintf("%%-%ds  %%-13s  %%-11s  %%s\n", width)

	fmt.Fprintf(&b, row, "NODE", "ROLE", "STATUS", "ACTION")
	for _, e := range entries {
		recorded := string(e.Status)
		if recorded == "" {
			recorded = "-"
		}
		fmt.Fprintf(&b, row, e.Name, e.Role, recorded, e.Action)
	}

	fmt.Fprintf(&b, "\n%d to create, %d to resume, %d to retry, %d unchanged, %d orphaned\n",
		nodes.Count(entries, nodes.ActionCreate),
		nodes.Count(entries, nodes.ActionResume),
		nodes.Count(entries, nodes.ActionRetry),
		nodes.Count(entries, nodes.ActionKeep),
		nodes.Count(entries, nodes.ActionOrphan),
	)
	return b.String()
}
