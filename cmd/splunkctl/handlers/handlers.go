// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/platform/dynamodb"
	"github.com/imamik/splunkctl/internal/platform/ec2"
	"github.com/imamik/splunkctl/internal/platform/s3"
	"github.com/imamik/splunkctl/internal/platform/ssm"
	"github.com/imamik/splunkctl/internal/provisioning"
	"github.com/imamik/splunkctl/internal/provisioning/bootstrap"
	"github.com/imamik/splunkctl/internal/provisioning/compute"
	"github.com/imamik/splunkctl/internal/state"
	"github.com/imamik/splunkctl/internal/status"
)

// Output formats of read-only commands.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// ComputeBackend is the EC2 surface used by apply and status --audit.
// Implemented by *ec2.Client.
type ComputeBackend interface {
	compute.Backend
	status.AuditBackend
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// findConfigFile resolves the config path.
	findConfigFile = config.FindConfigFile

	// loadConfigFile loads config from file (for testing injection).
	loadConfigFile = config.LoadFile

	// newCoordinator creates the remote state coordinator of a cluster.
	newCoordinator = func(ctx context.Context, cfg *config.Config, profile string) (state.Coordinator, error) {
		store, err := s3.NewClient(ctx, cfg.State.Bucket, s3.Options{Region: cfg.State.Region, Profile: profile})
		if err != nil {
			return nil, fmt.Errorf("failed to create state store client: %w", err)
		}
		locks, err := dynamodb.NewClient(ctx, cfg.State.LockTable, dynamodb.Options{Region: cfg.State.Region, Profile: profile})
		if err != nil {
			return nil, fmt.Errorf("failed to create lock table client: %w", err)
		}
		return state.NewRemoteCoordinator(store, locks, state.RemoteOptions{
			KeyPrefix: cfg.State.KeyPrefix,
			LeaseTTL:  cfg.State.LeaseTTL,
			Owner:     owner(),
		}), nil
	}

	// newStateBucket creates the client used to check that the state bucket exists.
	newStateBucket = func(ctx context.Context, cfg *config.Config, profile string) (provisioning.BucketChecker, error) {
		client, err := s3.NewClient(ctx, cfg.State.Bucket, s3.Options{Region: cfg.State.Region, Profile: profile})
		if err != nil {
			return nil, fmt.Errorf("failed to create state store client: %w", err)
		}
		return client, nil
	}

	// newComputeBackend creates the EC2 client.
	newComputeBackend = func(ctx context.Context, cfg *config.Config, profile string) (ComputeBackend, error) {
		client, err := ec2.NewClient(ctx, ec2.Options{Region: cfg.AWS.Region, Profile: profile})
		if err != nil {
			return nil, fmt.Errorf("failed to create EC2 client: %w", err)
		}
		return client, nil
	}

	// newExecutor creates the command executor selected by bootstrap.executor.
	newExecutor = func(ctx context.Context, cfg *config.Config, profile string) (bootstrap.Executor, error) {
		switch cfg.Bootstrap.Executor {
		case config.ExecutorSSM:
			timeouts := config.LoadTimeouts()
			client, err := ssm.NewClient(ctx, ssm.Options{
				Region:       cfg.AWS.Region,
				Profile:      profile,
				AgentTimeout: timeouts.AgentOnline,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create SSM client: %w", err)
			}
			return &bootstrap.SSMExecutor{Runner: client}, nil
		default:
			key, err := readFile(cfg.Bootstrap.SSH.PrivateKeyPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read SSH private key: %w", err)
			}
			return &bootstrap.SSHExecutor{
				User:         cfg.Bootstrap.SSH.User,
				Port:         cfg.Bootstrap.SSH.Port,
				PrivateKey:   key,
				UsePrivateIP: cfg.Bootstrap.SSH.UsePrivateIP,
			}, nil
		}
	}

	// readFile reads a file (for testing injection).
	readFile = os.ReadFile

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	// now is the clock of status reports.
	now = time.Now
)

// loadConfig resolves, loads and validates the cluster definition.
func loadConfig(configPath string) (*config.Config, error) {
	path, err := findConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("no config file found: %w", err)
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// awsProfile returns the profile flag, falling back to aws.profile.
func awsProfile(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.AWS.Profile
}

// owner identifies this process in lease contention errors.
func owner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
