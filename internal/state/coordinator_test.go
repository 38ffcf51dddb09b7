package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/splunkctl/internal/config"
)

const testTTL = 15 * time.Minute

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type coordinatorFactory func(clock *fakeClock) Coordinator

func coordinators() map[string]coordinatorFactory {
	return map[string]coordinatorFactory{
		"memory": func(clock *fakeClock) Coordinator {
			return NewMemoryCoordinator(WithLeaseTTL(testTTL), WithClock(clock.Now))
		},
		"remote": func(clock *fakeClock) Coordinator {
			return NewRemoteCoordinator(newFakeStore(), newFakeLockTable(), RemoteOptions{
				KeyPrefix: "splunkctl",
				LeaseTTL:  testTTL,
				Owner:     "ops-host:100",
				Now:       clock.Now,
			})
		},
	}
}

// forEachCoordinator runs fn against every Coordinator implementation.
func forEachCoordinator(t *testing.T, fn func(t *testing.T, c Coordinator, clock *fakeClock)) {
	for name, factory := range coordinators() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			fn(t, factory(clock), clock)
		})
	}
}

func sampleState(cluster string) *ClusterState {
	st := New(cluster)
	st.ClusterMasterAddress = "10.0.0.4"
	st.Put(&Node{
		Name:           cluster + "-clustermaster-0",
		Role:           config.RoleClusterMaster,
		ResourceID:     "i-0cm",
		PrivateAddress: "10.0.0.4",
		Status:         StatusReady,
	})
	return st
}

func TestCoordinator_LoadMissingIsEmpty(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		st, err := c.Load(context.Background(), "prod")
		require.NoError(t, err)
		assert.Equal(t, "prod", st.ClusterName)
		assert.Equal(t, int64(0), st.Version)
		assert.Empty(t, st.Nodes)
	})
}

func TestCoordinator_AcquireIsExclusive(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		ctx := context.Background()

		lease, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)
		assert.NotEmpty(t, lease.ID)

		_, err = c.Acquire(ctx, "prod")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLockContention)

		var contention *LockContentionError
		require.True(t, errors.As(err, &contention))
		assert.Equal(t, "prod", contention.Cluster)
		assert.NotEmpty(t, contention.Holder)

		// Other clusters are independent.
		_, err = c.Acquire(ctx, "staging")
		assert.NoError(t, err)
	})
}

func TestCoordinator_ConcurrentAcquireOneWinner(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		var wins, contended atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Acquire(context.Background(), "prod")
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrLockContention):
					contended.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(7), contended.Load())
	})
}

func TestCoordinator_ReleaseAllowsNextRun(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		ctx := context.Background()

		lease, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)
		require.NoError(t, c.Release(ctx, lease))

		_, err = c.Acquire(ctx, "prod")
		assert.NoError(t, err)
	})
}

func TestCoordinator_SaveAdvancesVersion(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		ctx := context.Background()
		lease, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)

		st := sampleState("prod")
		require.NoError(t, c.Save(ctx, lease, st, 0))
		assert.Equal(t, int64(1), st.Version)

		require.NoError(t, c.Save(ctx, lease, st, 1))
		assert.Equal(t, int64(2), st.Version)

		loaded, err := c.Load(ctx, "prod")
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
		assert.Equal(t, "10.0.0.4", loaded.ClusterMasterAddress)
		require.Contains(t, loaded.Nodes, "prod-clustermaster-0")
		assert.Equal(t, StatusReady, loaded.Nodes["prod-clustermaster-0"].Status)
	})
}

func TestCoordinator_StaleVersionConflicts(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		ctx := context.Background()
		lease, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)

		require.NoError(t, c.Save(ctx, lease, sampleState("prod"), 0))

		stale := New("prod")
		err = c.Save(ctx, lease, stale, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVersionConflict)

		var conflict *VersionConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, int64(0), conflict.Expected)
		assert.Equal(t, int64(1), conflict.Actual)
		assert.Equal(t, int64(0), stale.Version)

		loaded, err := c.Load(ctx, "prod")
		require.NoError(t, err)
		assert.Len(t, loaded.Nodes, 1, "conflicting save must not overwrite")
	})
}

func TestCoordinator_SaveRequiresHeldLease(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		ctx := context.Background()
		lease, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)

		assert.ErrorIs(t, c.Save(ctx, lease, sampleState("staging"), 0), ErrLeaseLost)

		require.NoError(t, c.Release(ctx, lease))
		assert.ErrorIs(t, c.Save(ctx, lease, sampleState("prod"), 0), ErrLeaseLost)
	})
}

func TestCoordinator_ExpiredLeaseIsTakenOver(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, clock *fakeClock) {
		ctx := context.Background()
		first, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)

		clock.Advance(testTTL + time.Minute)

		second, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		assert.ErrorIs(t, c.Save(ctx, first, sampleState("prod"), 0), ErrLeaseLost)
		assert.ErrorIs(t, c.Renew(ctx, first), ErrLeaseLost)
		assert.NoError(t, c.Save(ctx, second, sampleState("prod"), 0))
	})
}

func TestCoordinator_RenewExtendsLease(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, clock *fakeClock) {
		ctx := context.Background()
		lease, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)

		clock.Advance(10 * time.Minute)
		require.NoError(t, c.Renew(ctx, lease))
		clock.Advance(10 * time.Minute)

		_, err = c.Acquire(ctx, "prod")
		assert.ErrorIs(t, err, ErrLockContention)
		assert.NoError(t, c.Save(ctx, lease, sampleState("prod"), 0))
	})
}

func TestCoordinator_ForceUnlock(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		ctx := context.Background()
		_, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)

		require.NoError(t, c.ForceUnlock(ctx, "prod"))

		_, err = c.Acquire(ctx, "prod")
		assert.NoError(t, err)
	})
}

func TestCoordinator_LoadReturnsIndependentCopy(t *testing.T) {
	t.Parallel()
	forEachCoordinator(t, func(t *testing.T, c Coordinator, _ *fakeClock) {
		ctx := context.Background()
		lease, err := c.Acquire(ctx, "prod")
		require.NoError(t, err)

		st := sampleState("prod")
		require.NoError(t, c.Save(ctx, lease, st, 0))
		st.Nodes["prod-clustermaster-0"].Status = StatusFailed

		loaded, err := c.Load(ctx, "prod")
		require.NoError(t, err)
		assert.Equal(t, StatusReady, loaded.Nodes["prod-clustermaster-0"].Status)
	})
}
