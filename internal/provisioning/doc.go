// Package provisioning provides shared types and interfaces for cluster provisioning.
//
// The provisioning domain is organized into focused subpackages:
//   - compute/ — EC2 instance allocation and adoption per node
//   - bootstrap/ — Splunk role configuration over SSH or SSM
//
// This root package contains the phase pipeline, the run context and the
// observer used by the orchestrator and both subpackages.
package provisioning
