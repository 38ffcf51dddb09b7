package state

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/imamik/splunkctl/internal/config"
)

// Status is a node lifecycle state.
type Status string

// Lifecycle states, in order of progress.
const (
	StatusPending     Status = "pending"
	StatusAllocating  Status = "allocating"
	StatusRunning     Status = "running"
	StatusConfiguring Status = "configuring"
	StatusJoined      Status = "joined"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

// Statuses returns every lifecycle state in order of progress, failed last.
func Statuses() []Status {
	return []Status{
		StatusPending, StatusAllocating, StatusRunning, StatusConfiguring,
		StatusJoined, StatusReady, StatusFailed,
	}
}

// Terminal reports whether no further transition happens within a run.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Cause is the failure cause code recorded on a failed node.
type Cause string

// Failure causes.
const (
	CauseProvisionTimeout  Cause = "ProvisionTimeout"
	CauseAllocationFailed  Cause = "AllocationFailed"
	CauseMissingDependency Cause = "MissingDependency"
	CauseBootstrapFailure  Cause = "BootstrapFailure"
	CauseHealthCheckFailed Cause = "HealthCheckFailed"
)

// Node is the runtime record of one provisioned node.
type Node struct {
	Name    string      `json:"name"`
	Role    config.Role `json:"role"`
	Ordinal int         `json:"ordinal"`

	ResourceID     string `json:"resource_id,omitempty"`
	PrivateAddress string `json:"private_address,omitempty"`
	PublicAddress  string `json:"public_address,omitempty"`
	InstanceType   string `json:"instance_type,omitempty"`
	ImageID        string `json:"image_id,omitempty"`
	Subnet         string `json:"subnet,omitempty"`

	Status       Status `json:"status"`
	FailureCause Cause  `json:"failure_cause,omitempty"`
	Diagnostic   string `json:"diagnostic,omitempty"`

	// ClusterMasterAddress is the master address the node was configured with.
	ClusterMasterAddress string `json:"cluster_master_address,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address returns the address other nodes use to reach this one.
func (n *Node) Address() string {
	if n.PrivateAddress != "" {
		return n.PrivateAddress
	}
	return n.PublicAddress
}

// Clone returns a copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// ClusterState is the persisted record of a cluster.
type ClusterState struct {
	ClusterName string `json:"cluster_name"`
	// Version is advanced by exactly one on every successful save.
	Version              int64            `json:"version"`
	ClusterMasterAddress string           `json:"cluster_master_address,omitempty"`
	Nodes                map[string]*Node `json:"nodes"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// New returns the empty state of a cluster that was never saved.
func New(cluster string) *ClusterState {
	return &ClusterState{ClusterName: cluster, Nodes: map[string]*Node{}}
}

// Clone returns a deep copy of s.
func (s *ClusterState) Clone() *ClusterState {
	c := *s
	c.Nodes = make(map[string]*Node, len(s.Nodes))
	for name, n := range s.Nodes {
		c.Nodes[name] = n.Clone()
	}
	return &c
}

// Get returns a copy of the named node.
func (s *ClusterState) Get(name string) (*Node, bool) {
	n, ok := s.Nodes[name]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Put records a copy of n, replacing any node with the same name.
func (s *ClusterState) Put(n *Node) {
	if s.Nodes == nil {
		s.Nodes = map[string]*Node{}
	}
	s.Nodes[n.Name] = n.Clone()
}

// Names returns the recorded node names in sorted order.
func (s *ClusterState) Names() []string {
	return slices.Sorted(maps.Keys(s.Nodes))
}

// ByRole returns copies of the nodes of a role ordered by ordinal.
func (s *ClusterState) ByRole(role config.Role) []*Node {
	var out []*Node
	for _, n := range s.Nodes {
		if n.Role == role {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}
