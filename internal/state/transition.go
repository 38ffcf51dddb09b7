package state

import (
	"fmt"
	"slices"
	"time"
)

// transitions lists the legal forward edges of the lifecycle.
var transitions = map[Status][]Status{
	StatusPending:     {StatusAllocating},
	StatusAllocating:  {StatusRunning},
	StatusRunning:     {StatusConfiguring},
	StatusConfiguring: {StatusJoined},
	StatusJoined:      {StatusReady},
}

// CanTransition reports whether from -> to is a legal edge.
// Failed is reachable from every non-terminal state.
func CanTransition(from, to Status) bool {
	if to == StatusFailed {
		return !from.Terminal()
	}
	return slices.Contains(transitions[from], to)
}

// Transition moves n to status to.
func Transition(n *Node, to Status, now time.Time) error {
	if !CanTransition(n.Status, to) {
		return fmt.Errorf("node %s: %s -> %s: %w", n.Name, n.Status, to, ErrIllegalTransition)
	}
	n.Status = to
	n.UpdatedAt = now
	return nil
}

// Fail moves n to failed and records why.
func Fail(n *Node, cause Cause, diagnostic string, now time.Time) error {
	if err := Transition(n, StatusFailed, now); err != nil {
		return err
	}
	n.FailureCause = cause
	n.Diagnostic = diagnostic
	return nil
}

// Reset returns n to pending for a fresh allocation. It applies to failed
// nodes on a later run and to nodes whose recorded resource no longer exists.
// Ready nodes are never reset.
func Reset(n *Node, now time.Time) error {
	if n.Status == StatusReady {
		return fmt.Errorf("node %s: ready -> pending: %w", n.Name, ErrIllegalTransition)
	}
	n.Status = StatusPending
	n.ResourceID = ""
	n.PrivateAddress = ""
	n.PublicAddress = ""
	n.FailureCause = ""
	n.Diagnostic = ""
	n.ClusterMasterAddress = ""
	n.UpdatedAt = now
	return nil
}
