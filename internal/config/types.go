package config

import "time"

// Role is a Splunk node role.
type Role string

// Supported roles.
const (
	RoleClusterMaster Role = "clustermaster"
	RoleDeployer      Role = "deployer"
	RoleIndexer       Role = "indexer"
	RoleSearchHead    Role = "searchhead"
)

// Roles returns every supported role in canonical tier order.
func Roles() []Role {
	return []Role{RoleClusterMaster, RoleDeployer, RoleIndexer, RoleSearchHead}
}

// Valid reports whether r is a supported role.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// Config is the declarative cluster definition.
type Config struct {
	Cluster   ClusterConfig     `yaml:"cluster"`
	Network   NetworkConfig     `yaml:"network"`
	Nodes     map[Role]RoleSpec `yaml:"nodes" validate:"dive"`
	AWS       AWSConfig         `yaml:"aws"`
	State     StateConfig       `yaml:"state"`
	Bootstrap BootstrapConfig   `yaml:"bootstrap"`
}

// ClusterConfig identifies the cluster and the resources shared by every node.
type ClusterConfig struct {
	Name string `yaml:"name" validate:"required,clustername"`

	// CertificatePath is the path of the TLS certificate on the target nodes.
	// It is handed to the bootstrap command as-is.
	CertificatePath string `yaml:"certificate_path" validate:"required"`

	ArchivalBackend ArchivalBackend `yaml:"archival_backend"`

	// Tags are applied to every node; role tags override them.
	Tags map[string]string `yaml:"tags"`
}

// ArchivalBackend is the bucket indexers freeze buckets into.
type ArchivalBackend struct {
	Bucket string `yaml:"bucket" validate:"required"`
	Region string `yaml:"region" validate:"required"`
}

// NetworkConfig describes where nodes are placed.
type NetworkConfig struct {
	VPCID          string   `yaml:"vpc_id" validate:"required"`
	Subnets        []string `yaml:"subnets" validate:"dive,required"`
	SecurityGroups []string `yaml:"security_groups" validate:"dive,required"`

	// AssociatePublicIP requests a public address for every node.
	AssociatePublicIP bool `yaml:"associate_public_ip"`
}

// RoleSpec is the desired shape of one role.
type RoleSpec struct {
	Count         int               `yaml:"count" validate:"gte=0"`
	InstanceType  string            `yaml:"instance_type" validate:"required_unless=Count 0"`
	AMIID         string            `yaml:"ami_id" validate:"required_unless=Count 0"`
	Tags          map[string]string `yaml:"tags"`
	RootVolumeGiB int32             `yaml:"root_volume_gib" validate:"gte=0"`
}

// AWSConfig holds account level settings for the compute backend.
type AWSConfig struct {
	// Region defaults to the archival backend region.
	Region             string `yaml:"region"`
	Profile            string `yaml:"profile"`
	KeyName            string `yaml:"key_name"`
	IAMInstanceProfile string `yaml:"iam_instance_profile"`
}

// StateConfig locates the shared run state.
type StateConfig struct {
	// Bucket defaults to the archival backend bucket.
	Bucket    string        `yaml:"bucket"`
	KeyPrefix string        `yaml:"key_prefix"`
	LockTable string        `yaml:"lock_table"`
	Region    string        `yaml:"region"`
	LeaseTTL  time.Duration `yaml:"lease_ttl"`
}

// BootstrapConfig controls how nodes are configured for their role.
type BootstrapConfig struct {
	Executor      string    `yaml:"executor" validate:"omitempty,oneof=ssh ssm"`
	Command       string    `yaml:"command"`
	CheckCommand  string    `yaml:"check_command"`
	HealthCommand string    `yaml:"health_command"`
	Concurrency   int       `yaml:"concurrency" validate:"gte=0"`
	SSH           SSHConfig `yaml:"ssh"`
}

// SSHConfig is used by the ssh executor.
type SSHConfig struct {
	User           string `yaml:"user"`
	PrivateKeyPath string `yaml:"private_key_path"`
	Port           int    `yaml:"port" validate:"gte=0,lte=65535"`
	// UsePrivateIP connects to the private address even when a public one exists.
	UsePrivateIP bool `yaml:"use_private_ip"`
}

// Count returns the desired node count of a role.
func (c *Config) Count(role Role) int {
	return c.Nodes[role].Count
}

// TotalNodes returns the number of nodes across all roles.
func (c *Config) TotalNodes() int {
	total := 0
	for _, spec := range c.Nodes {
		total += spec.Count
	}
	return total
}
