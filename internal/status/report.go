package status

import (
	"sort"
	"time"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/nodes"
	"github.com/imamik/splunkctl/internal/state"
)

// NodeRow is one node of a status report.
type NodeRow struct {
	Name       string       `json:"name"`
	Role       config.Role  `json:"role"`
	Status     state.Status `json:"status"`
	Address    string       `json:"address,omitempty"`
	ResourceID string       `json:"resource_id,omitempty"`
	Cause      state.Cause  `json:"failure_cause,omitempty"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
	// Stale marks a node stuck outside ready and failed for longer than the grace period.
	Stale bool `json:"stale,omitempty"`
}

// RoleSummary counts the nodes of one role per lifecycle state.
type RoleSummary struct {
	Role config.Role `json:"role"`
	// Desired is the configured count; -1 when the report was built without config.
	Desired int                  `json:"desired"`
	Counts  map[state.Status]int `json:"counts"`
}

// Total returns the number of recorded nodes of the role.
func (r RoleSummary) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// ClusterStatus is a point-in-time report of one cluster.
type ClusterStatus struct {
	Cluster              string        `json:"cluster"`
	Version              int64         `json:"version"`
	ClusterMasterAddress string        `json:"cluster_master_address,omitempty"`
	Roles                []RoleSummary `json:"roles"`
	Nodes                []NodeRow     `json:"nodes"`
	// Missing names desired nodes without a record yet.
	Missing []string `json:"missing,omitempty"`
	// Orphans names recorded nodes no longer desired.
	Orphans     []string  `json:"orphans,omitempty"`
	Findings    []Finding `json:"findings,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Failed returns the rows of failed nodes.
func (s *ClusterStatus) Failed() []NodeRow {
	return s.filter(func(r NodeRow) bool { return r.Status == state.StatusFailed })
}

// StaleProvisioning returns the rows flagged stale.
func (s *ClusterStatus) StaleProvisioning() []NodeRow {
	return s.filter(func(r NodeRow) bool { return r.Stale })
}

// Healthy reports whether every desired node is ready and no audit finding exists.
func (s *ClusterStatus) Healthy() bool {
	if len(s.Missing) > 0 || len(s.Findings) > 0 {
		return false
	}
	for _, r := range s.Nodes {
		if r.Status != state.StatusReady {
			return false
		}
	}
	return true
}

func (s *ClusterStatus) filter(keep func(NodeRow) bool) []NodeRow {
	var out []NodeRow
	for _, r := range s.Nodes {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Reporter builds status reports.
type Reporter struct {
	// StaleGrace is the age after which a non-terminal node is stale.
	StaleGrace time.Duration
	Now        func() time.Time
}

// NewReporter creates a reporter.
func NewReporter(staleGrace time.Duration) *Reporter {
	return &Reporter{StaleGrace: staleGrace, Now: time.Now}
}

// Report summarizes st. Nodes are ordered by tier, then ordinal.
func (r *Reporter) Report(st *state.ClusterState) *ClusterStatus {
	now := r.now()
	out := &ClusterStatus{
		Cluster:              st.ClusterName,
		Version:              st.Version,
		ClusterMasterAddress: st.ClusterMasterAddress,
		GeneratedAt:          now,
	}

	byRole := map[config.Role]*RoleSummary{}
	for _, role := range nodes.RoleOrder() {
		byRole[role] = &RoleSummary{Role: role, Desired: -1, Counts: map[state.Status]int{}}
	}

	for _, name := range st.Names() {
		n := st.Nodes[name]
		row := NodeRow{
			Name:       n.Name,
			Role:       n.Role,
			Status:     n.Status,
			Address:    n.Address(),
			ResourceID: n.ResourceID,
			Cause:      n.FailureCause,
			Diagnostic: n.Diagnostic,
			UpdatedAt:  n.UpdatedAt,
			Stale:      !n.Status.Terminal() && r.StaleGrace > 0 && now.Sub(n.UpdatedAt) > r.StaleGrace,
		}
		out.Nodes = append(out.Nodes, row)
		if sum, ok := byRole[n.Role]; ok {
			sum.Counts[n.Status]++
		}
	}

	rank := roleRank()
	sort.SliceStable(out.Nodes, func(i, j int) bool {
		a, b := out.Nodes[i], out.Nodes[j]
		if rank[a.Role] != rank[b.Role] {
			return rank[a.Role] < rank[b.Role]
		}
		return ordinalOf(st, a.Name) < ordinalOf(st, b.Name)
	})

	for _, role := range nodes.RoleOrder() {
		out.Roles = append(out.Roles, *byRole[role])
	}
	return out
}

// Compare records desired counts, desired nodes without a record and recorded
// nodes that are no longer desired.
func (s *ClusterStatus) Compare(st *state.ClusterState, descs []nodes.Descriptor) {
	desired := map[config.Role]int{}
	for _, d := range descs {
		desired[d.Role]++
		if _, ok := st.Get(d.Name); !ok {
			s.Missing = append(s.Missing, d.Name)
		}
	}
	for i := range s.Roles {
		s.Roles[i].Desired = desired[s.Roles[i].Role]
	}
	s.Orphans = nil
	for _, n := range nodes.Orphans(st, descs) {
		s.Orphans = append(s.Orphans, n.Name)
	}
}

func (r *Reporter) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func roleRank() map[config.Role]int {
	rank := map[config.Role]int{}
	for i, role := range nodes.RoleOrder() {
		rank[role] = i
	}
	return rank
}

func ordinalOf(st *state.ClusterState, name string) int {
	if n, ok := st.Get(name); ok {
		return n.Ordinal
	}
	return 0
}
