package provisioning

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/imamik/splunkctl/internal/config"
)

// ValidationError represents a pre-flight validation error or warning.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// BucketChecker reports whether the state bucket exists. Implemented by *s3.Client.
type BucketChecker interface {
	Bucket() string
	BucketExists(ctx context.Context) (bool, error)
}

// ValidationPhase implements the Phase interface for pre-flight checks that
// need the local machine (key files), the state bucket, or are advisory
// only. Structural checks live in config.Validate.
type ValidationPhase struct {
	stateBucket BucketChecker
}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// WithStateBucket makes the phase fail when the state bucket is missing or
// unreachable.
func (vp *ValidationPhase) WithStateBucket(b BucketChecker) *ValidationPhase {
	vp.stateBucket = b
	return vp
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	var errs []string
	findings := Preflight(ctx.Config)
	if vp.stateBucket != nil {
		findings = append(findings, checkStateBucket(ctx, vp.stateBucket)...)
	}
	for _, ve := range findings {
		if ve.IsError() {
			ctx.Observer.Event(Event{Type: EventValidationError, Phase: vp.Name(), Resource: ve.Field, Message: ve.Message})
			errs = append(errs, ve.Error())
			continue
		}
		ctx.Observer.Event(Event{Type: EventValidationWarning, Phase: vp.Name(), Resource: ve.Field, Message: ve.Message})
	}

	if len(errs) > 0 {
		return fmt.Errorf("pre-flight validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func checkStateBucket(ctx context.Context, b BucketChecker) []ValidationError {
	exists, err := b.BucketExists(ctx)
	switch {
	case err != nil:
		return []ValidationError{{
			Field:    "state.bucket",
			Message:  fmt.Sprintf("cannot reach state bucket %s: %v", b.Bucket(), err),
			Severity: "error",
		}}
	case !exists:
		return []ValidationError{{
			Field:    "state.bucket",
			Message:  fmt.Sprintf("state bucket %s does not exist", b.Bucket()),
			Severity: "error",
		}}
	}
	return nil
}

// Preflight runs all checks and returns any errors or warnings.
func Preflight(cfg *config.Config) []ValidationError {
	var errs []ValidationError
	if cfg == nil {
		return []ValidationError{{Field: "config", Message: "config is required", Severity: "error"}}
	}

	// --- Executor credentials ---

	if cfg.Bootstrap.Executor == config.ExecutorSSH && cfg.TotalNodes() > 0 {
		path := cfg.Bootstrap.SSH.PrivateKeyPath
		if path != "" {
			if _, err := os.ReadFile(path); err != nil {
				errs = append(errs, ValidationError{
					Field:    "bootstrap.ssh.private_key_path",
					Message:  fmt.Sprintf("cannot read private key: %v", err),
					Severity: "error",
				})
			}
		}
		if cfg.AWS.KeyName == "" {
			errs = append(errs, ValidationError{
				Field:    "aws.key_name",
				Message:  "no EC2 key pair set, instances must already trust the SSH key",
				Severity: "warning",
			})
		}
	}

	if cfg.Bootstrap.Executor == config.ExecutorSSM && cfg.AWS.IAMInstanceProfile == "" && cfg.TotalNodes() > 0 {
		errs = append(errs, ValidationError{
			Field:    "aws.iam_instance_profile",
			Message:  "the ssm executor needs an instance profile that allows the SSM agent to register",
			Severity: "warning",
		})
	}

	// --- Topology ---

	if n := cfg.Count(config.RoleIndexer); n > 0 && n < 3 {
		errs = append(errs, ValidationError{
			Field:    "nodes.indexer.count",
			Message:  fmt.Sprintf("%d indexers cannot satisfy a replication factor of 3", n),
			Severity: "warning",
		})
	}

	if cfg.Count(config.RoleDeployer) > 0 && cfg.Count(config.RoleSearchHead) == 0 {
		errs = append(errs, ValidationError{
			Field:    "nodes.deployer.count",
			Message:  "a deployer without search heads has nothing to deploy to",
			Severity: "warning",
		})
	}

	if len(cfg.Network.Subnets) == 1 && cfg.TotalNodes() > 1 {
		errs = append(errs, ValidationError{
			Field:    "network.subnets",
			Message:  "all nodes share one subnet and therefore one availability zone",
			Severity: "warning",
		})
	}

	return errs
}
