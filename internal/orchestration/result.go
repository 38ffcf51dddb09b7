package orchestration

import (
	"sort"
	"sync"

	"github.com/imamik/splunkctl/internal/state"
)

// Result summarizes a run.
type Result struct {
	// State is the state as last checkpointed.
	State *state.ClusterState
	// Version is the stored version after the last checkpoint.
	Version int64
	// Allocated counts nodes bound to an instance they did not have before.
	Allocated int
	// Failed lists nodes that ended the run failed, sorted by name.
	Failed []*state.Node
	// Orphans names recorded nodes that are no longer desired.
	Orphans []string
	// Unreachable names ready nodes whose health check failed in this run.
	Unreachable []string

	mu sync.Mutex
}

// OK reports whether no node is failed.
func (r *Result) OK() bool {
	return len(r.Failed) == 0
}

func (r *Result) addUnreachable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Unreachable = append(r.Unreachable, name)
}

func (r *Result) collect() {
	r.Failed = nil
	if r.State == nil {
		return
	}
	for _, name := range r.State.Names() {
		if n := r.State.Nodes[name]; n.Status == state.StatusFailed {
			r.Failed = append(r.Failed, n.Clone())
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Strings(r.Unreachable)
}
