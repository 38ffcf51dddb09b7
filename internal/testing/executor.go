package testing

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/provisioning/bootstrap"
)

// ErrUnreachable is returned by FakeExecutor for nodes marked unreachable.
var ErrUnreachable = errors.New("connection refused")

// Call is one command run by FakeExecutor.
type Call struct {
	Target  bootstrap.Target
	Command string
}

// FakeExecutor emulates nodes running the bootstrap script. A node counts as
// joined once its bootstrap command succeeded; the check and health commands
// succeed only for joined nodes.
type FakeExecutor struct {
	// BootstrapHook runs before every bootstrap command; a non-nil error is
	// returned instead of running it.
	BootstrapHook func(ctx context.Context, target bootstrap.Target) error

	checkCommand  string
	healthCommand string

	mu          sync.Mutex
	calls       []Call
	joined      map[string]bool
	masters     map[string]string
	failures    map[string]bootstrap.Result
	unhealthy   map[string]bool
	unreachable map[string]bool
}

// NewFakeExecutor creates an executor that recognizes cfg's check and health commands.
func NewFakeExecutor(cfg *config.Config) *FakeExecutor {
	return &FakeExecutor{
		checkCommand:  cfg.Bootstrap.CheckCommand,
		healthCommand: cfg.Bootstrap.HealthCommand,
		joined:        make(map[string]bool),
		masters:       make(map[string]string),
		failures:      make(map[string]bootstrap.Result),
		unhealthy:     make(map[string]bool),
		unreachable:   make(map[string]bool),
	}
}

// Run implements bootstrap.Executor.
func (f *FakeExecutor) Run(ctx context.Context, target bootstrap.Target, command string) (*bootstrap.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Target: target, Command: command})
	unreachable := f.unreachable[target.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if unreachable {
		return nil, ErrUnreachable
	}

	switch command {
	case f.checkCommand:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.joined[target.Name] {
			return &bootstrap.Result{}, nil
		}
		return &bootstrap.Result{ExitCode: 1}, nil
	case f.healthCommand:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.joined[target.Name] && !f.unhealthy[target.Name] {
			return &bootstrap.Result{Stdout: "splunkd is running"}, nil
		}
		return &bootstrap.Result{ExitCode: 3, Stderr: "splunkd is not running"}, nil
	}

	if f.BootstrapHook != nil {
		if err := f.BootstrapHook(ctx, target); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.failures[target.Name]; ok {
		return &res, nil
	}
	f.joined[target.Name] = true
	f.masters[target.Name] = masterFrom(command)
	return &bootstrap.Result{Stdout: "joined"}, nil
}

// FailBootstrap makes the bootstrap command of node exit with code and stderr.
func (f *FakeExecutor) FailBootstrap(node string, code int, stderr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[node] = bootstrap.Result{ExitCode: code, Stderr: stderr}
}

// ClearFailures removes every injected bootstrap failure.
func (f *FakeExecutor) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.failures)
}

// SetUnhealthy makes the health command of node fail.
func (f *FakeExecutor) SetUnhealthy(node string, unhealthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhealthy[node] = unhealthy
}

// SetUnreachable makes every command to node fail to connect.
func (f *FakeExecutor) SetUnreachable(node string, unreachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[node] = unreachable
}

// Joined reports whether node completed its bootstrap.
func (f *FakeExecutor) Joined(node string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined[node]
}

// MasterAddress returns the cluster master address node was bootstrapped with.
func (f *FakeExecutor) MasterAddress(node string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.masters[node]
}

// Calls returns every command run so far.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// BootstrapCalls returns how many bootstrap commands ran on node.
func (f *FakeExecutor) BootstrapCalls(node string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Target.Name == node && c.Command != f.checkCommand && c.Command != f.healthCommand {
			n++
		}
	}
	return n
}

func masterFrom(command string) string {
	prefix := bootstrap.MasterAddressEnv + "='"
	if !strings.HasPrefix(command, prefix) {
		return ""
	}
	rest := command[len(prefix):]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return ""
	}
	return rest[:end]
}
