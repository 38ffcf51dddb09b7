package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phaseFunc(name string, fn func(*Context) error) Phase {
	return PhaseFunc{PhaseName: name, Fn: fn}
}

func TestRunPhases_Order(t *testing.T) {
	t.Parallel()

	var executed []string
	observer := NewMockObserver()
	ctx := &Context{Context: context.Background(), Observer: observer}

	phases := []Phase{
		phaseFunc("clustermaster", func(*Context) error { executed = append(executed, "clustermaster"); return nil }),
		phaseFunc("indexer", func(*Context) error { executed = append(executed, "indexer"); return nil }),
		phaseFunc("searchhead", func(*Context) error { executed = append(executed, "searchhead"); return nil }),
	}

	require.NoError(t, RunPhases(ctx, phases))
	assert.Equal(t, []string{"clustermaster", "indexer", "searchhead"}, executed)
	assert.Equal(t, []EventType{
		EventPhaseStarted, EventPhaseCompleted,
		EventPhaseStarted, EventPhaseCompleted,
		EventPhaseStarted, EventPhaseCompleted,
	}, observer.types())
}

func TestRunPhases_StopsOnError(t *testing.T) {
	t.Parallel()

	var executed []string
	observer := NewMockObserver()
	ctx := &Context{Context: context.Background(), Observer: observer}
	boom := errors.New("boom")

	err := RunPhases(ctx, []Phase{
		phaseFunc("clustermaster", func(*Context) error { executed = append(executed, "clustermaster"); return boom }),
		phaseFunc("indexer", func(*Context) error { executed = append(executed, "indexer"); return nil }),
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "clustermaster phase failed")
	assert.Equal(t, []string{"clustermaster"}, executed)
	assert.Equal(t, []EventType{EventPhaseStarted, EventPhaseFailed}, observer.types())
}

func TestRunPhases_Cancelled(t *testing.T) {
	t.Parallel()

	cctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	ctx := &Context{Context: cctx, Observer: NewMockObserver()}
	err := RunPhases(ctx, []Phase{phaseFunc("indexer", func(*Context) error { called = true; return nil })})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestContext_WithContextAndClock(t *testing.T) {
	t.Parallel()

	base := NewContext(context.Background(), nil, NewMockObserver())
	require.NotNil(t, base.Timeouts)
	assert.False(t, base.Clock().IsZero())

	type key struct{}
	child := base.WithContext(context.WithValue(base, key{}, "v"))
	assert.Equal(t, "v", child.Value(key{}))
	assert.Same(t, base.Observer, child.Observer)
	assert.Nil(t, base.Value(key{}))

	empty := &Context{}
	assert.False(t, empty.Clock().IsZero())
}

func TestNewContext_DefaultObserver(t *testing.T) {
	t.Parallel()

	ctx := NewContext(context.Background(), nil, nil)
	require.IsType(t, &LogrObserver{}, ctx.Observer)
	ctx.Observer.Printf("discarded")
}
