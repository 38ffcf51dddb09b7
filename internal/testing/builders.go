package testing

import (
	"maps"
	"slices"

	"github.com/imamik/splunkctl/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a builder for a cluster named "test" with one
// clustermaster, three indexers, two search heads and one deployer.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			Cluster: config.ClusterConfig{
				Name:            "test",
				CertificatePath: "/etc/splunk/certs/cluster.pem",
				ArchivalBackend: config.ArchivalBackend{Bucket: "test-archive", Region: "us-east-1"},
			},
			Network: config.NetworkConfig{
				VPCID:          "vpc-0123",
				Subnets:        []string{"subnet-a", "subnet-b", "subnet-c"},
				SecurityGroups: []string{"sg-splunk"},
			},
			Nodes: map[config.Role]config.RoleSpec{
				config.RoleClusterMaster: roleSpec(1),
				config.RoleIndexer:       roleSpec(3),
				config.RoleSearchHead:    roleSpec(2),
				config.RoleDeployer:      roleSpec(1),
			},
			AWS: config.AWSConfig{Region: "us-east-1", KeyName: "ops"},
			State: config.StateConfig{
				Bucket:    "test-archive",
				KeyPrefix: config.DefaultStateKeyPrefix,
				LockTable: config.DefaultLockTable,
				Region:    "us-east-1",
				LeaseTTL:  config.DefaultLeaseTTL,
			},
			Bootstrap: config.BootstrapConfig{
				Executor:      config.ExecutorSSH,
				Command:       config.DefaultBootstrapCommand,
				CheckCommand:  config.DefaultCheckCommand,
				HealthCommand: config.DefaultHealthCommand,
				SSH: config.SSHConfig{
					User:           config.DefaultSSHUser,
					Port:           config.DefaultSSHPort,
					PrivateKeyPath: "/home/ops/.ssh/id_ed25519",
				},
			},
		},
	}
}

func roleSpec(count int) config.RoleSpec {
	return config.RoleSpec{Count: count, InstanceType: "m5.xlarge", AMIID: "ami-0splunk"}
}

// WithClusterName sets the cluster name.
func (b *ConfigBuilder) WithClusterName(name string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Cluster.Name = name
	return newBuilder
}

// WithNodes sets the node count of role.
func (b *ConfigBuilder) WithNodes(role config.Role, count int) *ConfigBuilder {
	newBuilder := b.clone()
	spec := newBuilder.cfg.Nodes[role]
	if spec.InstanceType == "" {
		spec = roleSpec(count)
	}
	spec.Count = count
	newBuilder.cfg.Nodes[role] = spec
	return newBuilder
}

// WithSubnets sets the subnet list.
func (b *ConfigBuilder) WithSubnets(subnets ...string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Network.Subnets = slices.Clone(subnets)
	return newBuilder
}

// WithExecutor sets the bootstrap executor.
func (b *ConfigBuilder) WithExecutor(executor string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Bootstrap.Executor = executor
	return newBuilder
}

// WithCheckCommand sets the bootstrap check command.
func (b *ConfigBuilder) WithCheckCommand(cmd string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Bootstrap.CheckCommand = cmd
	return newBuilder
}

// Build returns a copy of the built config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	cfg.Nodes = maps.Clone(b.cfg.Nodes)
	cfg.Network.Subnets = slices.Clone(b.cfg.Network.Subnets)
	cfg.Network.SecurityGroups = slices.Clone(b.cfg.Network.SecurityGroups)
	cfg.Cluster.Tags = maps.Clone(b.cfg.Cluster.Tags)
	return &ConfigBuilder{cfg: cfg}
}
