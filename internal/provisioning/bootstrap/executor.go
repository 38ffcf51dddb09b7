package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/splunkctl/internal/platform/ssh"
	"github.com/imamik/splunkctl/internal/platform/ssm"
	"github.com/imamik/splunkctl/internal/state"
)

// Target identifies the node a command runs on.
type Target struct {
	Name           string
	InstanceID     string
	PrivateAddress string
	PublicAddress  string
}

// TargetOf returns the target of a provisioned node.
func TargetOf(n *state.Node) Target {
	return Target{
		Name:           n.Name,
		InstanceID:     n.ResourceID,
		PrivateAddress: n.PrivateAddress,
		PublicAddress:  n.PublicAddress,
	}
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a shell command on a node. A command that exits non-zero is
// a Result, not an error; errors mean the command could not be run.
type Executor interface {
	Run(ctx context.Context, target Target, command string) (*Result, error)
}

// SSHExecutor runs commands over SSH.
type SSHExecutor struct {
	User       string
	Port       int
	PrivateKey []byte
	// UsePrivateIP connects to the private address even when a public one exists.
	UsePrivateIP bool
}

// Run implements Executor.
func (e *SSHExecutor) Run(ctx context.Context, target Target, command string) (*Result, error) {
	host := target.PublicAddress
	if e.UsePrivateIP || host == "" {
		host = target.PrivateAddress
	}
	if host == "" {
		return nil, fmt.Errorf("node %s has no address", target.Name)
	}

	client, err := ssh.NewClient(&ssh.Config{
		Host:       host,
		Port:       e.Port,
		User:       e.User,
		PrivateKey: e.PrivateKey,
	})
	if err != nil {
		return nil, err
	}
	res, err := client.Run(ctx, command)
	if err != nil {
		return nil, err
	}
	return &Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

// CommandRunner is the SSM surface SSMExecutor needs. Implemented by *ssm.Client.
type CommandRunner interface {
	Run(ctx context.Context, instanceID, command string) (*ssm.Result, error)
}

// SSMExecutor runs commands through AWS Systems Manager Run Command.
type SSMExecutor struct {
	Runner CommandRunner
}

// Run implements Executor.
func (e *SSMExecutor) Run(ctx context.Context, target Target, command string) (*Result, error) {
	if target.InstanceID == "" {
		return nil, fmt.Errorf("node %s has no instance id", target.Name)
	}
	res, err := e.Runner.Run(ctx, target.InstanceID, command)
	if err != nil {
		return nil, err
	}
	return &Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

// quoteArgs wraps each argument in single quotes for safe shell usage.
func quoteArgs(args []string) []string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return quoted
}
