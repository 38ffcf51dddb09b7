package status

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/imamik/splunkctl/internal/nodes"
	"github.com/imamik/splunkctl/internal/platform/ec2"
	"github.com/imamik/splunkctl/internal/state"
	"github.com/imamik/splunkctl/internal/util/labels"
)

// FindingKind classifies an audit finding.
type FindingKind string

// Audit finding kinds.
const (
	FindingMissingInstance FindingKind = "missing-instance"
	FindingNotRunning      FindingKind = "not-running"
	FindingMissingTags     FindingKind = "missing-tags"
)

// Finding is a discrepancy between a node record and EC2.
type Finding struct {
	Node   string      `json:"node"`
	Kind   FindingKind `json:"kind"`
	Detail string      `json:"detail"`
}

// AuditBackend is the EC2 surface Audit needs. Implemented by *ec2.Client.
type AuditBackend interface {
	DescribeInstance(ctx context.Context, id string) (*ec2.Instance, error)
}

// Audit describes every recorded instance and reports instances that are
// gone or not running, and instances missing any tag their descriptor
// requires. Nodes without a recorded instance are skipped.
func (r *Reporter) Audit(ctx context.Context, backend AuditBackend, st *state.ClusterState, descs []nodes.Descriptor) ([]Finding, error) {
	wanted := make(map[string]map[string]string, len(descs))
	for _, d := range descs {
		wanted[d.Name] = d.Tags
	}

	var findings []Finding
	for _, name := range st.Names() {
		n := st.Nodes[name]
		if n.ResourceID == "" {
			continue
		}

		inst, err := backend.DescribeInstance(ctx, n.ResourceID)
		if errors.Is(err, ec2.ErrNotFound) {
			findings = append(findings, Finding{Node: name, Kind: FindingMissingInstance, Detail: n.ResourceID + " does not exist"})
			continue
		}
		if err != nil {
			return findings, fmt.Errorf("failed to audit %s: %w", name, err)
		}

		if inst.State != ec2.StateRunning {
			findings = append(findings, Finding{Node: name, Kind: FindingNotRunning, Detail: fmt.Sprintf("%s is %s", inst.ID, inst.State)})
		}

		required := wanted[name]
		if required == nil {
			required = labels.DiscoveryFilter(st.ClusterName, name)
		}
		if missing := labels.Missing(required, inst.Tags); len(missing) > 0 {
			findings = append(findings, Finding{Node: name, Kind: FindingMissingTags, Detail: strings.Join(missing, ", ")})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Node < findings[j].Node })
	return findings, nil
}
