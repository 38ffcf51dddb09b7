package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/nodes"
	"github.com/imamik/splunkctl/internal/provisioning"
	"github.com/imamik/splunkctl/internal/provisioning/bootstrap"
	"github.com/imamik/splunkctl/internal/state"
	"github.com/imamik/splunkctl/internal/util/async"
	"github.com/imamik/splunkctl/internal/util/retry"
)

// tierPhase provisions and configures every node of one role.
type tierPhase struct {
	run  *run
	tier nodes.Tier
}

// Name implements provisioning.Phase.
func (p *tierPhase) Name() string {
	return string(p.tier.Role)
}

// Provision implements provisioning.Phase. Node failures are recorded and
// do not fail the phase; a checkpoint failure or cancellation does.
func (p *tierPhase) Provision(ctx *provisioning.Context) error {
	start := time.Now()
	r := p.run
	masterAddress := r.state.ClusterMasterAddress
	gate := r.gate(p.tier.Role, masterAddress)
	if gate != nil {
		ctx.Observer.Printf("tier %s is blocked: %v", p.tier.Role, gate)
	}

	type outcome struct {
		node *state.Node
		err  error
	}
	var mu sync.Mutex
	outcomes := make(map[string]outcome, len(p.tier.Descriptors))

	tasks := make([]async.Task, 0, len(p.tier.Descriptors))
	for _, desc := range p.tier.Descriptors {
		existing, _ := r.state.Get(desc.Name)
		tasks = append(tasks, async.Task{
			Name: desc.Name,
			Func: func(taskCtx context.Context) error {
				node, err := r.reconcileNode(ctx.WithContext(taskCtx), desc, existing, masterAddress, gate)
				mu.Lock()
				outcomes[desc.Name] = outcome{node: node, err: err}
				mu.Unlock()
				return err
			},
		})
	}

	nodeErrs := async.RunParallel(ctx, tasks, r.config.Bootstrap.Concurrency)

	for _, desc := range p.tier.Descriptors {
		out, ok := outcomes[desc.Name]
		if !ok || out.node == nil {
			continue
		}
		if ctx.Err() == nil && !out.node.Status.Terminal() {
			// Only cancellation may leave a node mid-lifecycle; the next tier
			// must see every node of this one ready or failed.
			out.node, out.err = r.abandon(ctx, out.node, out.err)
		}
		before, _ := r.state.Get(desc.Name)
		if out.node.ResourceID != "" && (before == nil || before.ResourceID != out.node.ResourceID) {
			r.result.Allocated++
			r.metrics.RecordAllocation(r.state.ClusterName, desc.Role)
		}
		if out.err != nil && out.node.Status == state.StatusFailed {
			r.metrics.RecordFailure(r.state.ClusterName, desc.Role, out.node.FailureCause)
		}
		r.state.Put(out.node)
	}

	if p.tier.Role == config.RoleClusterMaster {
		r.state.ClusterMasterAddress = clusterMasterAddress(r.state)
	}

	if nodeErrs != nil {
		ctx.Observer.Printf("tier %s finished with node failures: %v", p.tier.Role, nodeErrs)
	}

	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	r.metrics.RecordTier(r.state.ClusterName, p.tier.Role, time.Since(start))
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("tier %s interrupted: %w", p.tier.Role, err)
	}
	return nil
}

// clusterMasterAddress returns the address of the ready cluster master, or
// an empty string when there is none.
func clusterMasterAddress(st *state.ClusterState) string {
	for _, n := range st.ByRole(config.RoleClusterMaster) {
		if n.Status == state.StatusReady {
			if n.ClusterMasterAddress != "" {
				return n.ClusterMasterAddress
			}
			return n.Address()
		}
	}
	return ""
}

// gate returns why nodes of role cannot be configured yet, or nil. Each role
// it depends on must have at least one ready node, unless no nodes of that
// role are desired. Dependents of the cluster master also need its address.
func (r *run) gate(role config.Role, masterAddress string) error {
	for _, dep := range nodes.RoleOrder() {
		if !nodes.DependsOn(role, dep) || r.desired[dep] == 0 {
			continue
		}
		if !hasReady(r.state, dep) {
			return fmt.Errorf("%w: %s needs at least one ready %s", bootstrap.ErrMissingDependency, role, dep)
		}
	}
	if role != config.RoleClusterMaster && masterAddress == "" {
		return fmt.Errorf("%w: %s needs a ready cluster master", bootstrap.ErrMissingDependency, role)
	}
	return nil
}

func hasReady(st *state.ClusterState, role config.Role) bool {
	for _, n := range st.ByRole(role) {
		if n.Status == state.StatusReady {
			return true
		}
	}
	return false
}

// abandon fails a node that ended its tier neither ready nor failed without
// the run being cancelled. The cause follows the step the node was stuck in.
func (r *run) abandon(ctx *provisioning.Context, node *state.Node, err error) (*state.Node, error) {
	if err == nil {
		err = fmt.Errorf("node %s stopped in %s", node.Name, node.Status)
	}
	cause := state.CauseAllocationFailed
	switch node.Status {
	case state.StatusConfiguring:
		cause = state.CauseBootstrapFailure
	case state.StatusJoined:
		cause = state.CauseHealthCheckFailed
	}
	observer := ctx.Observer.WithFields(map[string]string{"node": node.Name, "role": string(node.Role)})
	return r.fail(ctx, observer, node, cause, err)
}

// reconcileNode advances one node as far as it can go in this run. The
// returned node is the record to store, also when err is non-nil. A non-nil
// gate fails the node with a missing dependency before anything is allocated.
func (r *run) reconcileNode(ctx *provisioning.Context, desc nodes.Descriptor, existing *state.Node, masterAddress string, gate error) (*state.Node, error) {
	observer := ctx.Observer.WithFields(map[string]string{"node": desc.Name, "role": string(desc.Role)})

	if existing != nil && existing.Status == state.StatusReady {
		if err := r.configurator.Verify(ctx, existing); err != nil {
			observer.Event(provisioning.Event{
				Type:     provisioning.EventValidationWarning,
				Phase:    string(desc.Role),
				Resource: desc.Name,
				Message:  "ready node failed its health check; leaving it as is",
				Fields:   map[string]string{"error": err.Error()},
			})
			r.result.addUnreachable(desc.Name)
		}
		return existing.Clone(), nil
	}

	if gate != nil {
		return r.missingDependency(ctx, observer, desc, existing, gate)
	}

	node, err := r.provisioner.Provision(ctx, desc, existing)
	if err != nil || node == nil {
		return node, err
	}

	if node.Status == state.StatusRunning {
		if err := r.transition(ctx, observer, node, state.StatusConfiguring); err != nil {
			return node, err
		}
	}

	if node.Status == state.StatusConfiguring {
		outcome, err := r.configurator.Configure(ctx, node, desc.Role, masterAddress,
			r.config.Cluster.CertificatePath, r.config.Cluster.ArchivalBackend.Bucket)
		if err != nil {
			if ctx.Err() != nil {
				return node, fmt.Errorf("configuring %s interrupted: %w", node.Name, ctx.Err())
			}
			cause := state.CauseBootstrapFailure
			if errors.Is(err, bootstrap.ErrMissingDependency) {
				cause = state.CauseMissingDependency
			}
			return r.fail(ctx, observer, node, cause, err)
		}
		if outcome.AlreadyJoined {
			observer.Printf("%s already joined, skipped bootstrap", node.Name)
		}
		node.ClusterMasterAddress = outcome.MasterAddress
		if err := r.transition(ctx, observer, node, state.StatusJoined); err != nil {
			return node, err
		}
	}

	if node.Status == state.StatusJoined {
		if err := r.awaitHealthy(ctx, node); err != nil {
			if ctx.Err() != nil {
				return node, fmt.Errorf("health check of %s interrupted: %w", node.Name, ctx.Err())
			}
			return r.fail(ctx, observer, node, state.CauseHealthCheckFailed, err)
		}
		if err := r.transition(ctx, observer, node, state.StatusReady); err != nil {
			return node, err
		}
	}

	return node, nil
}

// missingDependency records that desc cannot proceed without a cluster
// master. No instance is allocated for it.
func (r *run) missingDependency(ctx *provisioning.Context, observer provisioning.Observer, desc nodes.Descriptor, existing *state.Node, reason error) (*state.Node, error) {
	now := ctx.Clock()
	node := existing.Clone()
	if node == nil {
		node = &state.Node{
			Name:         desc.Name,
			Role:         desc.Role,
			Ordinal:      desc.Ordinal,
			Status:       state.StatusPending,
			InstanceType: desc.InstanceType,
			ImageID:      desc.ImageID,
			Subnet:       desc.Subnet,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	if node.Status == state.StatusFailed {
		if err := state.Reset(node, now); err != nil {
			return node, err
		}
	}
	return r.fail(ctx, observer, node, state.CauseMissingDependency, fmt.Errorf("%s: %w", desc.Name, reason))
}

// awaitHealthy retries the health check while the node reports unhealthy.
// An unreachable node is not retried here; the executor already retried its dial.
func (r *run) awaitHealthy(ctx *provisioning.Context, node *state.Node) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		return r.configurator.Verify(ctx, node)
	},
		retry.WithMaxRetries(ctx.Timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(ctx.Timeouts.RetryInitialDelay),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, bootstrap.ErrHealthCheckFailed) }),
	)
}

func (r *run) transition(ctx *provisioning.Context, observer provisioning.Observer, node *state.Node, to state.Status) error {
	from := node.Status
	if err := state.Transition(node, to, ctx.Clock()); err != nil {
		return err
	}
	provisioning.LogNodeTransition(observer, string(node.Role), node.Name, string(from), string(to))
	return nil
}

func (r *run) fail(ctx *provisioning.Context, observer provisioning.Observer, node *state.Node, cause state.Cause, err error) (*state.Node, error) {
	from := node.Status
	if ferr := state.Fail(node, cause, err.Error(), ctx.Clock()); ferr != nil {
		return node, errors.Join(err, ferr)
	}
	provisioning.LogNodeTransition(observer, string(node.Role), node.Name, string(from), string(state.StatusFailed))
	return node, err
}
