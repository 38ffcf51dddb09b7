package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/state"
)

// MasterAddressEnv is the environment variable carrying the cluster master
// address to the bootstrap command.
const MasterAddressEnv = "SPLUNK_CLUSTER_MASTER"

// Settings are the commands and limits a Configurator runs with.
type Settings struct {
	Cluster       string
	Command       string
	CheckCommand  string
	HealthCommand string

	BootstrapTimeout time.Duration
	HealthTimeout    time.Duration
}

// SettingsFrom derives Settings from a loaded config.
func SettingsFrom(cfg *config.Config, timeouts *config.Timeouts) Settings {
	return Settings{
		Cluster:          cfg.Cluster.Name,
		Command:          cfg.Bootstrap.Command,
		CheckCommand:     cfg.Bootstrap.CheckCommand,
		HealthCommand:    cfg.Bootstrap.HealthCommand,
		BootstrapTimeout: timeouts.Bootstrap,
		HealthTimeout:    timeouts.Health,
	}
}

// Outcome describes a completed Configure call.
type Outcome struct {
	// MasterAddress is the cluster master address the node is joined to.
	// For the cluster master itself it is the node's own address.
	MasterAddress string
	// AlreadyJoined is set when the check command reported the node as
	// configured and the bootstrap command was skipped.
	AlreadyJoined bool
	Stdout        string
}

// Configurator runs the role bootstrap on running nodes.
type Configurator struct {
	exec     Executor
	settings Settings
}

// NewConfigurator creates a configurator.
func NewConfigurator(exec Executor, settings Settings) *Configurator {
	return &Configurator{exec: exec, settings: settings}
}

// Configure joins node to the cluster in role. Roles other than the cluster
// master require masterAddress; without it no command is run and the error
// wraps ErrMissingDependency.
func (c *Configurator) Configure(ctx context.Context, node *state.Node, role config.Role, masterAddress, certificate, bucket string) (Outcome, error) {
	if role == config.RoleClusterMaster {
		masterAddress = node.Address()
		if masterAddress == "" {
			return Outcome{}, fmt.Errorf("cluster master %s has no address", node.Name)
		}
	} else if masterAddress == "" {
		return Outcome{}, fmt.Errorf("%w: %s %s needs a cluster master address", ErrMissingDependency, role, node.Name)
	}

	target := TargetOf(node)

	if c.settings.CheckCommand != "" {
		res, err := c.run(ctx, target, c.settings.CheckCommand, c.settings.HealthTimeout)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to check %s: %w", node.Name, err)
		}
		if res.ExitCode == 0 {
			return Outcome{MasterAddress: masterAddress, AlreadyJoined: true, Stdout: res.Stdout}, nil
		}
	}

	cmd := BootstrapCommand(c.settings.Command, masterAddress, certificate, role, c.settings.Cluster, bucket)
	res, err := c.run(ctx, target, cmd, c.settings.BootstrapTimeout)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to bootstrap %s: %w", node.Name, err)
	}
	if res.ExitCode != 0 {
		return Outcome{}, &BootstrapError{
			Node:     node.Name,
			Command:  c.settings.Command,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			kind:     ErrBootstrapFailure,
		}
	}
	return Outcome{MasterAddress: masterAddress, Stdout: res.Stdout}, nil
}

// Verify runs the health command on node. A non-zero exit wraps
// ErrHealthCheckFailed; an unreachable node returns the executor error.
func (c *Configurator) Verify(ctx context.Context, node *state.Node) error {
	if c.settings.HealthCommand == "" {
		return nil
	}
	res, err := c.run(ctx, TargetOf(node), c.settings.HealthCommand, c.settings.HealthTimeout)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", node.Name, err)
	}
	if res.ExitCode != 0 {
		return &BootstrapError{
			Node:     node.Name,
			Command:  c.settings.HealthCommand,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			kind:     ErrHealthCheckFailed,
		}
	}
	return nil
}

func (c *Configurator) run(ctx context.Context, target Target, cmd string, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.exec.Run(ctx, target, cmd)
}

// BootstrapCommand renders the bootstrap invocation:
//
//	SPLUNK_CLUSTER_MASTER='<addr>' <command> '<cert>' '<role>' '<cluster>' '<bucket>'
//
// The command is inserted verbatim.
func BootstrapCommand(command, masterAddress, certificate string, role config.Role, cluster, bucket string) string {
	args := quoteArgs([]string{certificate, string(role), cluster, bucket})
	return fmt.Sprintf("%s=%s %s %s", MasterAddressEnv, quoteArgs([]string{masterAddress})[0], command, strings.Join(args, " "))
}
