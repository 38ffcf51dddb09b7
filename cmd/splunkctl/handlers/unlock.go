package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// ErrUnlockNotConfirmed is returned when unlock runs without --force.
var ErrUnlockNotConfirmed = errors.New("unlock removes the lease of whichever run holds it; pass --force to confirm")

// UnlockOptions are the inputs of the unlock command.
type UnlockOptions struct {
	ConfigPath string
	Profile    string
	Force      bool
}

// Unlock removes the cluster lease regardless of holder.
func Unlock(ctx context.Context, opts UnlockOptions) error {
	if !opts.Force {
		return ErrUnlockNotConfirmed
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	coordinator, err := newCoordinator(ctx, cfg, awsProfile(cfg, opts.Profile))
	if err != nil {
		return err
	}

	if err := coordinator.ForceUnlock(ctx, cfg.Cluster.Name); err != nil {
		return fmt.Errorf("failed to remove lease of %s: %w", cfg.Cluster.Name, err)
	}
	logr.FromContextOrDiscard(ctx).Info("lease removed", "cluster", cfg.Cluster.Name)
	fmt.Fprintf(stdout, "Lease of cluster %s removed\n", cfg.Cluster.Name)
	return nil
}
