package compute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/nodes"
	"github.com/imamik/splunkctl/internal/platform/ec2"
	"github.com/imamik/splunkctl/internal/provisioning"
	"github.com/imamik/splunkctl/internal/state"
	"github.com/imamik/splunkctl/internal/util/labels"
	"github.com/imamik/splunkctl/internal/util/retry"
)

const phase = "compute"

var (
	// ErrProvisionTimeout is returned when an instance does not reach running
	// with an address within the running timeout.
	ErrProvisionTimeout = errors.New("provision timeout")

	// ErrAllocationFailed is returned when an instance cannot be launched or
	// stops being usable while the node waits for it.
	ErrAllocationFailed = errors.New("allocation failed")
)

// Backend is the EC2 surface the driver needs. Implemented by *ec2.Client.
type Backend interface {
	RunInstance(ctx context.Context, in ec2.LaunchInput) (*ec2.Instance, error)
	DescribeInstance(ctx context.Context, id string) (*ec2.Instance, error)
	FindInstances(ctx context.Context, tags map[string]string) ([]*ec2.Instance, error)
	CreateTags(ctx context.Context, id string, tags map[string]string) error
}

// Driver moves a node from pending to running.
type Driver struct {
	backend  Backend
	newToken func() string
}

// NewDriver creates a driver over backend.
func NewDriver(backend Backend) *Driver {
	return &Driver{backend: backend, newToken: uuid.NewString}
}

// Provision brings the node described by desc to running and returns its
// updated record; existing is never modified. Ready nodes are returned as is
// and nodes already past running are only refreshed.
//
// The returned node is meaningful even when err is non-nil: on failure it
// carries the failed status and cause; on cancellation it keeps the status
// and resource id reached so far.
func (d *Driver) Provision(ctx *provisioning.Context, desc nodes.Descriptor, existing *state.Node) (*state.Node, error) {
	now := ctx.Clock()
	node := existing.Clone()
	if node == nil {
		node = &state.Node{
			Name:      desc.Name,
			Role:      desc.Role,
			Ordinal:   desc.Ordinal,
			Status:    state.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	observer := ctx.Observer.WithFields(map[string]string{"node": node.Name, "role": string(node.Role)})

	if node.Status == state.StatusReady {
		return node, nil
	}
	if node.Status == state.StatusFailed {
		observer.Printf("retrying failed node %s (was %s: %s)", node.Name, node.FailureCause, node.Diagnostic)
		if err := state.Reset(node, now); err != nil {
			return node, err
		}
	}

	if node.ResourceID != "" {
		inst, err := d.describe(ctx, ctx.Timeouts, observer, node.ResourceID)
		switch {
		case errors.Is(err, ec2.ErrNotFound) || (err == nil && inst.Gone()):
			observer.Printf("recorded instance %s of %s is gone, allocating a new one", node.ResourceID, node.Name)
			if err := state.Reset(node, ctx.Clock()); err != nil {
				return node, err
			}
		case err != nil:
			return d.backendFailure(ctx, observer, node, "describe of instance "+node.ResourceID, err)
		case !inst.Live():
			return d.fail(ctx, observer, node, state.CauseAllocationFailed, ErrAllocationFailed,
				fmt.Sprintf("instance %s is %s", inst.ID, inst.State))
		case node.Status != state.StatusAllocating && node.Status != state.StatusPending:
			// Past running: the instance is required to stay up, not to be re-awaited.
			node.PrivateAddress, node.PublicAddress = inst.PrivateIP, inst.PublicIP
			return node, nil
		}
	}

	if node.ResourceID == "" {
		if err := d.allocate(ctx, observer, desc, node); err != nil {
			return node, err
		}
	}

	return d.waitRunning(ctx, observer, node)
}

// allocate adopts a live tagged instance or launches a new one and records
// it on node, which ends in allocating.
func (d *Driver) allocate(ctx *provisioning.Context, observer provisioning.Observer, desc nodes.Descriptor, node *state.Node) error {
	node.InstanceType = desc.InstanceType
	node.ImageID = desc.ImageID
	node.Subnet = desc.Subnet
	if node.Status == state.StatusPending {
		if err := d.transition(ctx, observer, node, state.StatusAllocating); err != nil {
			return err
		}
	}

	var found []*ec2.Instance
	err := d.call(ctx, ctx.Timeouts, observer, "instance lookup", func() error {
		var err error
		found, err = d.backend.FindInstances(ctx, labels.DiscoveryFilter(desc.Cluster, desc.Name))
		return err
	})
	if err != nil {
		_, ferr := d.backendFailure(ctx, observer, node, "instance lookup", err)
		return ferr
	}
	for _, inst := range found {
		if !inst.Live() {
			continue
		}
		provisioning.LogResourceExists(observer, phase, node.Name, inst.ID)
		if missing := labels.Missing(desc.Tags, inst.Tags); len(missing) > 0 {
			err := d.call(ctx, ctx.Timeouts, observer, "tagging of "+inst.ID, func() error {
				return d.backend.CreateTags(ctx, inst.ID, desc.Tags)
			})
			if err != nil {
				_, ferr := d.backendFailure(ctx, observer, node, "tagging of adopted instance "+inst.ID, err)
				return ferr
			}
		}
		node.ResourceID = inst.ID
		node.UpdatedAt = ctx.Clock()
		return nil
	}

	provisioning.LogResourceCreating(observer, phase, node.Name)
	cfg := ctx.Config
	in := ec2.LaunchInput{
		ImageID:            desc.ImageID,
		InstanceType:       desc.InstanceType,
		SubnetID:           desc.Subnet,
		SecurityGroupIDs:   cfg.Network.SecurityGroups,
		KeyName:            cfg.AWS.KeyName,
		IAMInstanceProfile: cfg.AWS.IAMInstanceProfile,
		AssociatePublicIP:  cfg.Network.AssociatePublicIP,
		RootVolumeGiB:      desc.RootVolumeGiB,
		Tags:               desc.Tags,
		ClientToken:        d.newToken(),
	}
	// The client token stays the same across attempts, so a retried launch
	// never creates a second instance.
	var inst *ec2.Instance
	err = d.call(ctx, ctx.Timeouts, observer, "launch of "+node.Name, func() error {
		var err error
		inst, err = d.backend.RunInstance(ctx, in)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("launch of %s interrupted: %w", node.Name, ctx.Err())
		}
		_, ferr := d.fail(ctx, observer, node, state.CauseAllocationFailed, ErrAllocationFailed, err.Error())
		return ferr
	}

	provisioning.LogResourceCreated(observer, phase, node.Name, inst.ID)
	node.ResourceID = inst.ID
	node.PrivateAddress, node.PublicAddress = inst.PrivateIP, inst.PublicIP
	node.UpdatedAt = ctx.Clock()
	return nil
}

// waitRunning polls until the instance runs with an address.
func (d *Driver) waitRunning(ctx *provisioning.Context, observer provisioning.Observer, node *state.Node) (*state.Node, error) {
	timeout := ctx.Timeouts.InstanceRunning
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(ctx.Timeouts.PollInterval)
	defer ticker.Stop()

	for {
		inst, err := d.describe(waitCtx, ctx.Timeouts, observer, node.ResourceID)
		switch {
		case err == nil && inst.Gone():
			return d.fail(ctx, observer, node, state.CauseAllocationFailed, ErrAllocationFailed,
				fmt.Sprintf("instance %s is %s", inst.ID, inst.State))
		case err == nil && inst.State == ec2.StateRunning && (inst.PrivateIP != "" || inst.PublicIP != ""):
			node.PrivateAddress, node.PublicAddress = inst.PrivateIP, inst.PublicIP
			if err := d.transition(ctx, observer, node, state.StatusRunning); err != nil {
				return node, err
			}
			return node, nil
		case err != nil && !errors.Is(err, ec2.ErrNotFound) && waitCtx.Err() == nil:
			// Not found is expected briefly after launch.
			return d.backendFailure(ctx, observer, node, "describe of instance "+node.ResourceID, err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return node, fmt.Errorf("waiting for %s interrupted: %w", node.Name, ctx.Err())
			}
			return d.fail(ctx, observer, node, state.CauseProvisionTimeout, ErrProvisionTimeout,
				fmt.Sprintf("instance %s not running with an address after %v", node.ResourceID, timeout))
		case <-ticker.C:
		}
	}
}

// describe fetches one instance, retrying transient API errors.
func (d *Driver) describe(ctx context.Context, timeouts *config.Timeouts, observer provisioning.Observer, id string) (*ec2.Instance, error) {
	var inst *ec2.Instance
	err := d.call(ctx, timeouts, observer, "describe of "+id, func() error {
		var err error
		inst, err = d.backend.DescribeInstance(ctx, id)
		return err
	})
	return inst, err
}

// call runs op with backoff while it fails with throttling, server faults or
// network errors. Any other error is returned right away.
func (d *Driver) call(ctx context.Context, timeouts *config.Timeouts, observer provisioning.Observer, what string, op func() error) error {
	return retry.WithExponentialBackoff(ctx, op,
		retry.WithMaxRetries(timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(timeouts.RetryInitialDelay),
		retry.WithJitter(0.2),
		retry.WithRetryIf(ec2.IsTransient),
		retry.WithNotify(func(attempt int, err error, delay time.Duration) {
			observer.Printf("%s failed (attempt %d), retrying in %v: %v", what, attempt, delay, err)
		}),
	)
}

// backendFailure turns an EC2 error the node cannot get past into a failed
// record. A cancelled run keeps the status reached so far instead.
func (d *Driver) backendFailure(ctx *provisioning.Context, observer provisioning.Observer, node *state.Node, what string, err error) (*state.Node, error) {
	if ctx.Err() != nil {
		return node, fmt.Errorf("%s for %s interrupted: %w", what, node.Name, ctx.Err())
	}
	return d.fail(ctx, observer, node, state.CauseAllocationFailed, ErrAllocationFailed,
		fmt.Sprintf("%s failed: %v", what, err))
}

func (d *Driver) transition(ctx *provisioning.Context, observer provisioning.Observer, node *state.Node, to state.Status) error {
	from := node.Status
	if err := state.Transition(node, to, ctx.Clock()); err != nil {
		return err
	}
	provisioning.LogNodeTransition(observer, phase, node.Name, string(from), string(to))
	return nil
}

func (d *Driver) fail(ctx *provisioning.Context, observer provisioning.Observer, node *state.Node, cause state.Cause, kind error, diagnostic string) (*state.Node, error) {
	from := node.Status
	if err := state.Fail(node, cause, diagnostic, ctx.Clock()); err != nil {
		return node, err
	}
	provisioning.LogNodeTransition(observer, phase, node.Name, string(from), string(state.StatusFailed))
	return node, fmt.Errorf("%w: %s: %s", kind, node.Name, diagnostic)
}
