package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/metrics"
	"github.com/imamik/splunkctl/internal/nodes"
	"github.com/imamik/splunkctl/internal/provisioning"
	"github.com/imamik/splunkctl/internal/provisioning/bootstrap"
	"github.com/imamik/splunkctl/internal/state"
)

// detachedTimeout bounds the saves and the release that run after the run
// context ended.
const detachedTimeout = 30 * time.Second

// ErrNodesFailed is returned by callers that turn a Result with failed nodes
// into an error.
var ErrNodesFailed = errors.New("one or more nodes failed")

// NodeProvisioner brings a node's instance to running. Implemented by *compute.Driver.
type NodeProvisioner interface {
	Provision(ctx *provisioning.Context, desc nodes.Descriptor, existing *state.Node) (*state.Node, error)
}

// NodeConfigurator joins running nodes to the cluster. Implemented by *bootstrap.Configurator.
type NodeConfigurator interface {
	Configure(ctx context.Context, node *state.Node, role config.Role, masterAddress, certificate, bucket string) (bootstrap.Outcome, error)
	Verify(ctx context.Context, node *state.Node) error
}

// Reconciler orchestrates one apply run.
type Reconciler struct {
	config       *config.Config
	coordinator  state.Coordinator
	provisioner  NodeProvisioner
	configurator NodeConfigurator

	observer provisioning.Observer
	metrics  *metrics.Recorder
	timeouts *config.Timeouts
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithObserver sets the observer; the default discards everything.
func WithObserver(o provisioning.Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithTimeouts overrides the environment-derived timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(r *Reconciler) { r.timeouts = t }
}

// WithClock sets the clock used for node timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a new orchestration reconciler.
func NewReconciler(
	cfg *config.Config,
	coordinator state.Coordinator,
	provisioner NodeProvisioner,
	configurator NodeConfigurator,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		config:       cfg,
		coordinator:  coordinator,
		provisioner:  provisioner,
		configurator: configurator,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.observer == nil {
		r.observer = provisioning.NewLogrObserver(logr.Discard())
	}
	if r.timeouts == nil {
		r.timeouts = config.LoadTimeouts()
	}
	return r
}

// Reconcile drives every desired node toward ready. Node failures are
// recorded in the state and returned in the Result, not as an error; the
// error reports lock contention, storage conflicts, a lost lease or
// cancellation. When a Result is returned alongside an error it reflects
// the last checkpoint.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	start := time.Now()
	cluster := r.config.Cluster.Name
	observer := r.observer.WithFields(map[string]string{"cluster": cluster})
	descs := nodes.Build(r.config)

	lease, err := r.coordinator.Acquire(ctx, cluster)
	if err != nil {
		r.metrics.RecordRun(cluster, "contention", time.Since(start))
		return nil, err
	}
	observer.Printf("acquired lease %s on cluster %s", lease.ID, cluster)

	run := &run{
		Reconciler: r,
		lease:      lease,
		observer:   observer,
		result:     &Result{},
		desired:    desiredCounts(descs),
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stopHeartbeat := run.heartbeat(runCtx, cancel)
	defer run.release(ctx, stopHeartbeat)

	st, err := r.coordinator.Load(runCtx, cluster)
	if err != nil {
		return nil, fmt.Errorf("failed to load state of %s: %w", cluster, err)
	}
	run.state = st
	run.version = st.Version
	run.result.State = st

	for _, orphan := range nodes.Orphans(st, descs) {
		run.result.Orphans = append(run.result.Orphans, orphan.Name)
		observer.Event(provisioning.Event{
			Type:     provisioning.EventValidationWarning,
			Phase:    "plan",
			Resource: orphan.Name,
			Message:  "node is recorded but no longer desired; review and remove it manually",
			Fields:   map[string]string{"status": string(orphan.Status), "id": orphan.ResourceID},
		})
	}

	pctx := &provisioning.Context{
		Context:  runCtx,
		Config:   r.config,
		Observer: observer,
		Timeouts: r.timeouts,
		Now:      r.now,
	}

	var phases []provisioning.Phase
	for _, tier := range nodes.Tiers(descs) {
		phases = append(phases, &tierPhase{run: run, tier: tier})
	}

	runErr := provisioning.RunPhases(pctx, phases)
	if runErr != nil && context.Cause(runCtx) != nil && !errors.Is(runErr, context.Cause(runCtx)) {
		runErr = fmt.Errorf("%w: %w", runErr, context.Cause(runCtx))
	}

	run.result.Version = run.version
	run.result.collect()
	r.metrics.RecordState(st, run.desired)

	result := "success"
	switch {
	case runErr != nil:
		result = "error"
	case len(run.result.Failed) > 0:
		result = "failed_nodes"
	}
	r.metrics.RecordRun(cluster, result, time.Since(start))

	return run.result, runErr
}

// run is the mutable state of one Reconcile call.
type run struct {
	*Reconciler

	observer provisioning.Observer
	lease    *state.Lease

	// leaseMu serializes coordinator calls that read or renew the lease.
	leaseMu sync.Mutex

	state   *state.ClusterState
	version int64
	result  *Result
	desired map[config.Role]int
}

// checkpoint saves the state with a context detached from cancellation so
// that progress reached before an interrupt is still recorded.
func (r *run) checkpoint(ctx context.Context) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()

	r.leaseMu.Lock()
	defer r.leaseMu.Unlock()

	r.state.UpdatedAt = r.now().UTC()
	err := r.coordinator.Save(saveCtx, r.lease, r.state, r.version)
	r.metrics.RecordSave(r.state.ClusterName, err)
	if err != nil {
		return fmt.Errorf("failed to checkpoint state of %s at version %d: %w", r.state.ClusterName, r.version, err)
	}
	r.version = r.state.Version
	return nil
}

func desiredCounts(descs []nodes.Descriptor) map[config.Role]int {
	out := map[config.Role]int{}
	for _, d := range descs {
		out[d.Role]++
	}
	return out
}
