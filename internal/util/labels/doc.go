// Package labels provides consistent tagging for EC2 resources.
//
// Managed tag keys use the "splunkctl:" prefix and are always applied on top
// of operator supplied tags, so discovery by cluster, role and node name
// keeps working whatever the cluster definition contains.
package labels
