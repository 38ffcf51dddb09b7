// Package metrics exposes orchestration metrics in the Prometheus format.
//
// Each Recorder owns its registry so runs and tests do not share state. A
// nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/state"
)

const namespace = "splunkctl"

// Recorder holds the collectors of one process.
type Recorder struct {
	registry *prometheus.Registry

	nodes            *prometheus.GaugeVec
	nodesDesired     *prometheus.GaugeVec
	allocationsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	tierDuration     *prometheus.HistogramVec
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.GaugeVec
	stateSavesTotal  *prometheus.CounterVec
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		// Node metrics
		nodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cluster",
				Name:      "nodes",
				Help:      "Number of recorded nodes by role and lifecycle status",
			},
			[]string{"cluster", "role", "status"},
		),
		nodesDesired: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cluster",
				Name:      "nodes_desired",
				Help:      "Desired number of nodes by role",
			},
			[]string{"cluster", "role"},
		),

		// Provisioning metrics
		allocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provision",
				Name:      "allocations_total",
				Help:      "Total number of instances allocated or adopted by role",
			},
			[]string{"cluster", "role"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provision",
				Name:      "node_failures_total",
				Help:      "Total number of node failures by role and cause",
			},
			[]string{"cluster", "role", "cause"},
		),

		// Orchestration metrics
		tierDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "tier_duration_seconds",
				Help:      "Duration of a tier in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"cluster", "role"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "runs_total",
				Help:      "Total number of apply runs by result",
			},
			[]string{"cluster", "result"},
		),
		runDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "orchestrator",
				Name:      "last_run_duration_seconds",
				Help:      "Duration of the last apply run in seconds",
			},
			[]string{"cluster"},
		),
		stateSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "saves_total",
				Help:      "Total number of state document writes by result",
			},
			[]string{"cluster", "result"},
		),
	}

	r.registry.MustRegister(
		r.nodes,
		r.nodesDesired,
		r.allocationsTotal,
		r.failuresTotal,
		r.tierDuration,
		r.runsTotal,
		r.runDuration,
		r.stateSavesTotal,
	)
	return r
}

// Registry returns the registry holding every collector.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordState sets the per-status node gauges of st. Statuses without nodes
// are reported as zero so that series do not go stale.
func (r *Recorder) RecordState(st *state.ClusterState, desired map[config.Role]int) {
	if r == nil {
		return
	}
	for _, role := range config.Roles() {
		counts := map[state.Status]int{}
		for _, n := range st.ByRole(role) {
			counts[n.Status]++
		}
		for _, s := range state.Statuses() {
			r.nodes.WithLabelValues(st.ClusterName, string(role), string(s)).Set(float64(counts[s]))
		}
		r.nodesDesired.WithLabelValues(st.ClusterName, string(role)).Set(float64(desired[role]))
	}
}

// RecordAllocation counts an instance newly bound to a node.
func (r *Recorder) RecordAllocation(cluster string, role config.Role) {
	if r == nil {
		return
	}
	r.allocationsTotal.WithLabelValues(cluster, string(role)).Inc()
}

// RecordFailure counts a node that ended failed.
func (r *Recorder) RecordFailure(cluster string, role config.Role, cause state.Cause) {
	if r == nil {
		return
	}
	r.failuresTotal.WithLabelValues(cluster, string(role), string(cause)).Inc()
}

// RecordTier observes the duration of a tier.
func (r *Recorder) RecordTier(cluster string, role config.Role, d time.Duration) {
	if r == nil {
		return
	}
	r.tierDuration.WithLabelValues(cluster, string(role)).Observe(d.Seconds())
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(cluster, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(cluster, result).Inc()
	r.runDuration.WithLabelValues(cluster).Set(d.Seconds())
}

// RecordSave counts a state write attempt.
func (r *Recorder) RecordSave(cluster string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.stateSavesTotal.WithLabelValues(cluster, result).Inc()
}

// WriteTextfile writes every metric to path in the text exposition format,
// for node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
