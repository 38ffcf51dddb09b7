package nodes

import (
	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/state"
)

// Action is what a run will do with a node.
type Action string

// Plan actions.
const (
	ActionCreate Action = "create"
	ActionResume Action = "resume"
	ActionRetry  Action = "retry"
	ActionKeep   Action = "keep"
	ActionOrphan Action = "orphan"
)

// PlanEntry is the planned action for one node.
type PlanEntry struct {
	Name   string
	Role   config.Role
	Action Action
	// Status is the recorded status, empty for new nodes.
	Status state.Status
}

// Plan diffs descs against st. Entries follow descriptor order, with
// orphans appended last.
func Plan(st *state.ClusterState, descs []Descriptor) []PlanEntry {
	entries := make([]PlanEntry, 0, len(descs))
	for _, d := range descs {
		entry := PlanEntry{Name: d.Name, Role: d.Role, Action: ActionCreate}
		if n, ok := st.Nodes[d.Name]; ok {
			entry.Status = n.Status
			switch n.Status {
			case state.StatusReady:
				entry.Action = ActionKeep
			case state.StatusFailed:
				entry.Action = ActionRetry
			default:
				entry.Action = ActionResume
			}
		}
		entries = append(entries, entry)
	}

	for _, n := range Orphans(st, descs) {
		entries = append(entries, PlanEntry{Name: n.Name, Role: n.Role, Action: ActionOrphan, Status: n.Status})
	}
	return entries
}

// Count returns how many entries carry action.
func Count(entries []PlanEntry, action Action) int {
	c := 0
	for _, e := range entries {
		if e.Action == action {
			c++
		}
	}
	return c
}
