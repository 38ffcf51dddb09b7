// Package testing provides test utilities, builders, and fakes for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating validated cluster configurations
//   - FakeEC2: Stateful in-memory EC2 backend for the compute driver and status audit
//   - FakeExecutor: In-memory node command executor that tracks which nodes joined
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithClusterName("prod").
//	    WithNodes(config.RoleIndexer, 3).
//	    Build()
//
//	backend := testing.NewFakeEC2()
//	exec := testing.NewFakeExecutor(cfg)
package testing
