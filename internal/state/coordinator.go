package state

import (
	"context"
	"time"
)

// Lease grants exclusive write access to one cluster's state.
type Lease struct {
	Cluster    string
	ID         string
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Coordinator serializes runs against a cluster and stores its state.
type Coordinator interface {
	// Acquire takes the cluster lease or fails fast with *LockContentionError.
	Acquire(ctx context.Context, cluster string) (*Lease, error)

	// Renew extends a held lease. A lease that expired or was taken over
	// yields ErrLeaseLost.
	Renew(ctx context.Context, lease *Lease) error

	// Load returns the last saved state, or an empty version 0 state.
	Load(ctx context.Context, cluster string) (*ClusterState, error)

	// Save writes st as version expectedVersion+1 if the stored version is
	// still expectedVersion, and updates st.Version on success. Otherwise it
	// returns *VersionConflictError and stores nothing.
	Save(ctx context.Context, lease *Lease, st *ClusterState, expectedVersion int64) error

	// Release gives the lease up.
	Release(ctx context.Context, lease *Lease) error

	// ForceUnlock removes the cluster lease regardless of holder.
	ForceUnlock(ctx context.Context, cluster string) error
}
