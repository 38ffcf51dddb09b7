package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/splunkctl/internal/config"
	"github.com/imamik/splunkctl/internal/state"
)

func TestRecordState(t *testing.T) {
	t.Parallel()
	r := NewRecorder()

	st := state.New("prod")
	st.Put(&state.Node{Name: "prod-indexer-0", Role: config.RoleIndexer, Status: state.StatusReady})
	st.Put(&state.Node{Name: "prod-indexer-1", Role: config.RoleIndexer, Status: state.StatusReady})
	st.Put(&state.Node{Name: "prod-indexer-2", Role: config.RoleIndexer, Status: state.StatusFailed})

	r.RecordState(st, map[config.Role]int{config.RoleIndexer: 3})

	assert.Equal(t, float64(2), testutil.ToFloat64(r.nodes.WithLabelValues("prod", "indexer", "ready")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.nodes.WithLabelValues("prod", "indexer", "failed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.nodes.WithLabelValues("prod", "searchhead", "ready")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.nodesDesired.WithLabelValues("prod", "indexer")))
}

func TestCounters(t *testing.T) {
	t.Parallel()
	r := NewRecorder()

	r.RecordAllocation("prod", config.RoleIndexer)
	r.RecordAllocation("prod", config.RoleIndexer)
	r.RecordFailure("prod", config.RoleSearchHead, state.CauseBootstrapFailure)
	r.RecordRun("prod", "success", 90*time.Second)
	r.RecordSave("prod", nil)
	r.RecordSave("prod", errors.New("conflict"))
	r.RecordTier("prod", config.RoleIndexer, time.Minute)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.allocationsTotal.WithLabelValues("prod", "indexer")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.failuresTotal.WithLabelValues("prod", "searchhead", "BootstrapFailure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.runsTotal.WithLabelValues("prod", "success")))
	assert.Equal(t, float64(90), testutil.ToFloat64(r.runDuration.WithLabelValues("prod")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.stateSavesTotal.WithLabelValues("prod", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.tierDuration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()
	var r *Recorder

	r.RecordAllocation("prod", config.RoleIndexer)
	r.RecordState(state.New("prod"), nil)
	r.RecordRun("prod", "success", time.Second)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	r := NewRecorder()
	r.RecordRun("prod", "success", time.Second)

	path := filepath.Join(t.TempDir(), "splunkctl.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `splunkctl_orchestrator_runs_total{cluster="prod",result="success"} 1`)
}
