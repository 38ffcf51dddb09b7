package labels

import (
	"sort"
	"strconv"
)

// Managed tag keys.
const (
	// KeyName is the EC2 console display name; it carries the node name.
	KeyName = "Name"

	// KeyCluster identifies which cluster a resource belongs to
	KeyCluster = "splunkctl:cluster"

	// KeyRole identifies the Splunk role of a node
	KeyRole = "splunkctl:role"

	// KeyOrdinal is the node's stable position within its role
	KeyOrdinal = "splunkctl:ordinal"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "splunkctl:managed-by"
)

// ManagedBySplunkctl is the KeyManagedBy value for resources created by this tool.
const ManagedBySplunkctl = "splunkctl"

// TagBuilder builds the tag set of a resource. Operator tags are layered in
// Merge order; managed tags always win.
type TagBuilder struct {
	user    map[string]string
	managed map[string]string
}

// NewTagBuilder creates a builder with the cluster and managed-by tags pre-set.
func NewTagBuilder(clusterName string) *TagBuilder {
	return &TagBuilder{
		user: make(map[string]string),
		managed: map[string]string{
			KeyCluster:   clusterName,
			KeyManagedBy: ManagedBySplunkctl,
		},
	}
}

// WithName sets the Name tag.
func (b *TagBuilder) WithName(name string) *TagBuilder {
	b.managed[KeyName] = name
	return b
}

// WithRole sets the role tag.
func (b *TagBuilder) WithRole(role string) *TagBuilder {
	b.managed[KeyRole] = role
	return b
}

// WithOrdinal sets the ordinal tag.
func (b *TagBuilder) WithOrdinal(ordinal int) *TagBuilder {
	b.managed[KeyOrdinal] = strconv.Itoa(ordinal)
	return b
}

// Merge layers operator tags; later calls override earlier ones.
func (b *TagBuilder) Merge(extra map[string]string) *TagBuilder {
	for k, v := range extra {
		b.user[k] = v
	}
	return b
}

// Build returns a fresh map with operator tags overlaid by managed tags.
func (b *TagBuilder) Build() map[string]string {
	result := make(map[string]string, len(b.user)+len(b.managed))
	for k, v := range b.user {
		result[k] = v
	}
	for k, v := range b.managed {
		result[k] = v
	}
	return result
}

// DiscoveryFilter returns the tags identifying a single node of a cluster.
func DiscoveryFilter(clusterName, nodeName string) map[string]string {
	return map[string]string{
		KeyCluster: clusterName,
		KeyName:    nodeName,
	}
}

// Missing returns the keys of required whose value is absent or different in actual.
func Missing(required, actual map[string]string) []string {
	var missing []string
	for k, v := range required {
		if got, ok := actual[k]; !ok || got != v {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}
