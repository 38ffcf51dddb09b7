// Package state holds the durable record of a cluster's provisioning run and
// the coordinator that guards it.
//
// A ClusterState is a single versioned document. Writers hold a Lease for the
// cluster and persist with compare-and-swap on the version, so two runs can
// never both advance the same state. Nodes move through a fixed lifecycle
// enforced by Transition.
package state
