// Package naming provides consistent naming functions for cluster resources.
//
// Nodes are named {cluster}-{role}-{ordinal}. Names are a pure function of
// the cluster definition so repeated runs resolve to the same EC2 Name
// tags and the same state entries.
package naming
