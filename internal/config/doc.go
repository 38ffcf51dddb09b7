// Package config defines the declarative cluster definition and its loader.
//
// The [Config] struct is the validated in-memory model of a cluster's desired
// state: cluster identity, archival backend, network placement, per-role node
// counts and machine settings, plus the remote state and bootstrap settings
// the orchestrator needs. [LoadFile] and [Parse] are pure: they read and
// validate, nothing else. Every validation failure is a [ConfigError] naming
// the offending field by its YAML path.
package config
