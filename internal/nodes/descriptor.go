package nodes

import (
	"sort"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/state"
	"github.com/imamik/splunkctl/internal/util/labels"
	"github.com/imamik/splunkctl/internal/util/naming"
)

// Descriptor is the desired shape of one node.
type Descriptor struct {
	Cluster       string
	Name          string
	Role          config.Role
	Ordinal       int
	InstanceType  string
	ImageID       string
	Subnet        string
	RootVolumeGiB int32
	Tags          map[string]string
}

// Tier is the descriptors of one role.
type Tier struct {
	Role        config.Role
	Descriptors []Descriptor
}

// Build expands cfg into one descriptor per requested node, ordered by
// RoleOrder and then by ordinal.
func Build(cfg *config.Config) []Descriptor {
	var out []Descriptor
	subnets := cfg.Network.Subnets

	for _, role := range RoleOrder() {
		spec := cfg.Nodes[role]
		for ordinal := 0; ordinal < spec.Count; ordinal++ {
			name := naming.Node(cfg.Cluster.Name, string(role), ordinal)
			d := Descriptor{
				Cluster:       cfg.Cluster.Name,
				Name:          name,
				Role:          role,
				Ordinal:       ordinal,
				InstanceType:  spec.InstanceType,
				ImageID:       spec.AMIID,
				RootVolumeGiB: spec.RootVolumeGiB,
				Tags: labels.NewTagBuilder(cfg.Cluster.Name).
					Merge(cfg.Cluster.Tags).
					Merge(spec.Tags).
					WithName(name).
					WithRole(string(role)).
					WithOrdinal(ordinal).
					Build(),
			}
			if len(subnets) > 0 {
				d.Subnet = subnets[ordinal%len(subnets)]
			}
			out = append(out, d)
		}
	}
	return out
}

// Tiers groups descriptors by role in RoleOrder. Roles without descriptors
// are omitted.
func Tiers(descs []Descriptor) []Tier {
	byRole := map[config.Role][]Descriptor{}
	for _, d := range descs {
		byRole[d.Role] = append(byRole[d.Role], d)
	}

	var tiers []Tier
	for _, role := range RoleOrder() {
		if len(byRole[role]) == 0 {
			continue
		}
		tiers = append(tiers, Tier{Role: role, Descriptors: byRole[role]})
	}
	return tiers
}

// Orphans returns the recorded nodes that no descriptor names anymore,
// sorted by name. They are reported, never deleted.
func Orphans(st *state.ClusterState, descs []Descriptor) []*state.Node {
	wanted := make(map[string]bool, len(descs))
	for _, d := range descs {
		wanted[d.Name] = true
	}

	var out []*state.Node
	for name, n := range st.Nodes {
		if !wanted[name] {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
