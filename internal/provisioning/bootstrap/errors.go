package bootstrap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingDependency is returned when a role that needs the cluster
	// master is configured before the master address is known.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrBootstrapFailure is returned when the bootstrap command exits non-zero.
	ErrBootstrapFailure = errors.New("bootstrap failure")

	// ErrHealthCheckFailed is returned when the health command exits non-zero.
	ErrHealthCheckFailed = errors.New("health check failed")
)

// BootstrapError carries the output of a failed bootstrap or health command.
type BootstrapError struct {
	Node     string
	Command  string
	ExitCode int
	Stderr   string

	kind error
}

func (e *BootstrapError) Error() string {
	msg := fmt.Sprintf("%s on %s: %s exited with %d", e.kind, e.Node, e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Is matches ErrBootstrapFailure or ErrHealthCheckFailed.
func (e *BootstrapError) Is(target error) bool {
	return target == e.kind
}
