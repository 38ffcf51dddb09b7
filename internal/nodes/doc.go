// Package nodes expands a cluster definition into per-node descriptors.
//
// Expansion is deterministic: the same cluster definition always yields the same
// descriptors, names and tags in the same order. Roles are ordered by walking
// the role dependency graph so that every role comes after the roles it
// needs.
package nodes
