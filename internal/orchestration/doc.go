// Package orchestration provides high-level workflow coordination for cluster provisioning.
//
// A run takes the cluster lease, loads the recorded state and walks the role
// tiers in order. Nodes of one tier are provisioned and configured in
// parallel; the tier's results are merged and checkpointed with a
// compare-and-swap save before the next tier starts. The lease is renewed in
// the background and released when the run ends, however it ends.
package orchestration
