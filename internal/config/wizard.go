package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Instance type used for the clustermaster and the deployer.
const wizardManagementInstanceType = "m5.large"

// WizardResult holds the answers given to the init wizard.
type WizardResult struct {
	Name            string
	Region          string
	ArchiveBucket   string
	CertificatePath string
	VPCID           string
	Subnets         string
	SecurityGroups  string
	AMIID           string
	IndexerCount    int
	IndexerType     string
	SearchHeadCount int
	SearchHeadType  string
	Deployer        bool
	KeyName         string
	Executor        string
	PrivateKeyPath  string
}

// RunWizard asks for the values a minimal cluster definition needs.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		Region:          "us-east-1",
		CertificatePath: "/opt/splunk/etc/auth/server.pem",
		IndexerCount:    3,
		IndexerType:     "i3.2xlarge",
		SearchHeadCount: 2,
		SearchHeadType:  "m5.xlarge",
		Deployer:        true,
		Executor:        ExecutorSSM,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster name").
				Description("Used in instance names, tags and the state key").
				Placeholder("prod").
				Value(&result.Name).
				Validate(validateClusterName),
			huh.NewInput().
				Title("Region").
				Value(&result.Region).
				Validate(required("region")),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Archive bucket").
				Description("Frozen buckets land here; the run state is stored next to them").
				Value(&result.ArchiveBucket).
				Validate(required("archive bucket")),
			huh.NewInput().
				Title("Certificate path").
				Description("Path of the TLS certificate on the nodes").
				Value(&result.CertificatePath).
				Validate(required("certificate path")),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("VPC ID").
				Placeholder("vpc-0123456789abcdef0").
				Value(&result.VPCID).
				Validate(required("VPC ID")),
			huh.NewInput().
				Title("Subnets").
				Description("Comma separated; nodes are spread across them").
				Value(&result.Subnets).
				Validate(requiredList("subnet")),
			huh.NewInput().
				Title("Security groups").
				Description("Comma separated, optional").
				Value(&result.SecurityGroups),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("AMI ID").
				Description("Image with Splunk and the bootstrap script installed").
				Value(&result.AMIID).
				Validate(required("AMI ID")),
			huh.NewSelect[int]().
				Title("Number of indexers").
				Options(
					huh.NewOption("2 indexers", 2),
					huh.NewOption("3 indexers", 3),
					huh.NewOption("4 indexers", 4),
					huh.NewOption("6 indexers", 6),
				).
				Value(&result.IndexerCount),
			huh.NewInput().
				Title("Indexer instance type").
				Value(&result.IndexerType).
				Validate(required("indexer instance type")),
			huh.NewSelect[int]().
				Title("Number of search heads").
				Options(
					huh.NewOption("1 search head", 1),
					huh.NewOption("2 search heads", 2),
					huh.NewOption("3 search heads", 3),
				).
				Value(&result.SearchHeadCount),
			huh.NewInput().
				Title("Search head instance type").
				Value(&result.SearchHeadType).
				Validate(required("search head instance type")),
			huh.NewConfirm().
				Title("Add a deployer?").
				Value(&result.Deployer),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Bootstrap executor").
				Description("ssm needs the agent and an instance profile; ssh needs network access to the nodes").
				Options(
					huh.NewOption("AWS Systems Manager (ssm)", ExecutorSSM),
					huh.NewOption("SSH (ssh)", ExecutorSSH),
				).
				Value(&result.Executor),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("EC2 key pair name").
				Value(&result.KeyName),
			huh.NewInput().
				Title("Private key path").
				Placeholder("~/.ssh/splunk").
				Value(&result.PrivateKeyPath).
				Validate(required("private key path")),
		).WithHideFunc(func() bool { return result.Executor != ExecutorSSH }),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}
	return result, nil
}

// ToConfig converts the answers to a cluster definition with every default
// filled in, so the written file is explicit.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		Cluster: ClusterConfig{
			Name:            strings.TrimSpace(r.Name),
			CertificatePath: r.CertificatePath,
			ArchivalBackend: ArchivalBackend{Bucket: r.ArchiveBucket, Region: r.Region},
		},
		Network: NetworkConfig{
			VPCID:          r.VPCID,
			Subnets:        splitList(r.Subnets),
			SecurityGroups: splitList(r.SecurityGroups),
		},
		Nodes: map[Role]RoleSpec{
			RoleClusterMaster: {Count: 1, InstanceType: wizardManagementInstanceType, AMIID: r.AMIID},
			RoleIndexer:       {Count: r.IndexerCount, InstanceType: r.IndexerType, AMIID: r.AMIID},
			RoleSearchHead:    {Count: r.SearchHeadCount, InstanceType: r.SearchHeadType, AMIID: r.AMIID},
		},
		Bootstrap: BootstrapConfig{Executor: r.Executor},
	}
	if r.Deployer {
		cfg.Nodes[RoleDeployer] = RoleSpec{Count: 1, InstanceType: wizardManagementInstanceType, AMIID: r.AMIID}
	}
	if r.Executor == ExecutorSSH {
		cfg.AWS.KeyName = r.KeyName
		cfg.Bootstrap.SSH.PrivateKeyPath = r.PrivateKeyPath
	}

	cfg.applyDefaults()
	return cfg
}

func validateClusterName(s string) error {
	if !clusterNameRegex.MatchString(strings.TrimSpace(s)) {
		return errors.New("cluster name must start with a lowercase letter and contain only lowercase letters, digits and '-' (max 40 characters)")
	}
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func requiredList(what string) func(string) error {
	return func(s string) error {
		if len(splitList(s)) == 0 {
			return fmt.Errorf("at least one %s is required", what)
		}
		return nil
	}
}

// splitList splits a comma separated answer, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
