package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configErrors unwraps the joined validation result.
func configErrors(t *testing.T, err error) []*ConfigError {
	t.Helper()
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok, "expected joined errors, got %T", err)

	var out []*ConfigError
	for _, e := range joined.Unwrap() {
		var cfgErr *ConfigError
		require.True(t, errors.As(e, &cfgErr))
		out = append(out, cfgErr)
	}
	return out
}

func fields(errs []*ConfigError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
		msg    string
	}{
		{
			name:   "missing cluster name",
			mutate: func(c *Config) { c.Cluster.Name = "" },
			field:  "cluster.name",
			msg:    "is required",
		},
		{
			name:   "cluster name not name safe",
			mutate: func(c *Config) { c.Cluster.Name = "Prod_Cluster" },
			field:  "cluster.name",
			msg:    "lowercase",
		},
		{
			name:   "missing bucket",
			mutate: func(c *Config) { c.Cluster.ArchivalBackend.Bucket = "" },
			field:  "cluster.archival_backend.bucket",
			msg:    "is required",
		},
		{
			name:   "missing vpc",
			mutate: func(c *Config) { c.Network.VPCID = "" },
			field:  "network.vpc_id",
			msg:    "is required",
		},
		{
			name: "negative count",
			mutate: func(c *Config) {
				spec := c.Nodes[RoleIndexer]
				spec.Count = -1
				c.Nodes[RoleIndexer] = spec
			},
			field: "nodes.indexer.count",
			msg:   "must be >= 0",
		},
		{
			name: "instance type required when count is set",
			mutate: func(c *Config) {
				spec := c.Nodes[RoleSearchHead]
				spec.InstanceType = ""
				c.Nodes[RoleSearchHead] = spec
			},
			field: "nodes.searchhead.instance_type",
			msg:   "is required",
		},
		{
			name: "two cluster masters",
			mutate: func(c *Config) {
				spec := c.Nodes[RoleClusterMaster]
				spec.Count = 2
				c.Nodes[RoleClusterMaster] = spec
			},
			field: "nodes.clustermaster.count",
			msg:   "at most one",
		},
		{
			name:   "indexers without cluster master",
			mutate: func(c *Config) { delete(c.Nodes, RoleClusterMaster) },
			field:  "nodes.clustermaster.count",
			msg:    "exactly one clustermaster",
		},
		{
			name:   "no subnets",
			mutate: func(c *Config) { c.Network.Subnets = nil },
			field:  "network.subnets",
			msg:    "at least one subnet",
		},
		{
			name:   "ssh executor without key",
			mutate: func(c *Config) { c.Bootstrap.SSH.PrivateKeyPath = "" },
			field:  "bootstrap.ssh.private_key_path",
			msg:    "is required",
		},
		{
			name:   "unsupported executor",
			mutate: func(c *Config) { c.Bootstrap.Executor = "winrm" },
			field:  "bootstrap.executor",
			msg:    "must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			errs := configErrors(t, cfg.Validate())
			require.Contains(t, fields(errs), tt.field)
			for _, e := range errs {
				if e.Field == tt.field {
					assert.Contains(t, e.Message, tt.msg)
				}
			}
		})
	}
}

func TestValidate_ZeroCountRoleNeedsNoMachineSettings(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Nodes[RoleDeployer] = RoleSpec{Count: 0}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmptyClusterNeedsNoSubnetsOrMaster(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Nodes = map[Role]RoleSpec{}
	cfg.Network.Subnets = nil
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReportsAllErrorsSortedByField(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Network.VPCID = ""
	cfg.Cluster.Name = ""
	cfg.Network.Subnets = nil

	errs := configErrors(t, cfg.Validate())
	assert.Equal(t, []string{"cluster.name", "network.subnets", "network.vpc_id"}, fields(errs))
}

func TestConfigError_Error(t *testing.T) {
	t.Parallel()

	err := &ConfigError{Field: "nodes.indexer.count", Message: "must be >= 0"}
	assert.Equal(t, "invalid config: nodes.indexer.count: must be >= 0", err.Error())

	err = &ConfigError{Message: "yaml: line 1"}
	assert.Equal(t, "invalid config: yaml: line 1", err.Error())
}

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	for _, r := range Roles() {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("forwarder").Valid())
}
