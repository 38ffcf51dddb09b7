package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/splunkctl/internal/platform/dynamodb"
	"github.com/imamik/splunkctl/internal/platform/s3"
	"github.com/imamik/splunkctl/internal/util/naming"
)

// ObjectStore holds state documents.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) (*s3.Object, error)
	PutObject(ctx context.Context, key string, data []byte, opts s3.PutOptions) (string, error)
}

// LockTable holds cluster leases.
type LockTable interface {
	AcquireLock(ctx context.Context, item dynamodb.LockItem, now time.Time) error
	RenewLock(ctx context.Context, item dynamodb.LockItem) error
	DeleteLock(ctx context.Context, lockID, leaseID string) error
	ForceDeleteLock(ctx context.Context, lockID string) error
	GetLock(ctx context.Context, lockID string) (*dynamodb.LockItem, error)
}

// RemoteOptions configures a RemoteCoordinator.
type RemoteOptions struct {
	KeyPrefix string
	LeaseTTL  time.Duration
	// Owner identifies this run in contention errors, e.g. "host:pid".
	Owner string
	Now   func() time.Time
}

// RemoteCoordinator stores state in object storage and leases in a lock table.
type RemoteCoordinator struct {
	store  ObjectStore
	locks  LockTable
	prefix string
	ttl    time.Duration
	owner  string
	now    func() time.Time
}

// NewRemoteCoordinator creates a coordinator over store and locks.
func NewRemoteCoordinator(store ObjectStore, locks LockTable, opts RemoteOptions) *RemoteCoordinator {
	if opts.LeaseTTL == 0 {
		opts.LeaseTTL = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RemoteCoordinator{
		store:  store,
		locks:  locks,
		prefix: opts.KeyPrefix,
		ttl:    opts.LeaseTTL,
		owner:  opts.Owner,
		now:    opts.Now,
	}
}

// Acquire implements Coordinator.
func (c *RemoteCoordinator) Acquire(ctx context.Context, cluster string) (*Lease, error) {
	now := c.now()
	lease := &Lease{
		Cluster:    cluster,
		ID:         uuid.NewString(),
		Owner:      c.owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(c.ttl),
	}

	err := c.locks.AcquireLock(ctx, c.lockItem(lease), now)
	if err == nil {
		return lease, nil
	}
	if !errors.Is(err, dynamodb.ErrConditionFailed) {
		return nil, fmt.Errorf("failed to acquire lease on %s: %w", cluster, err)
	}

	contention := &LockContentionError{Cluster: cluster}
	if holder, getErr := c.locks.GetLock(ctx, naming.LockID(cluster)); getErr == nil {
		contention.Holder = holder.Owner
		contention.ExpiresAt = holder.Expiry()
	}
	return nil, contention
}

// Renew implements Coordinator.
func (c *RemoteCoordinator) Renew(ctx context.Context, lease *Lease) error {
	renewed := *lease
	renewed.ExpiresAt = c.now().Add(c.ttl)

	if err := c.locks.RenewLock(ctx, c.lockItem(&renewed)); err != nil {
		if errors.Is(err, dynamodb.ErrConditionFailed) {
			return fmt.Errorf("renew lease on %s: %w", lease.Cluster, ErrLeaseLost)
		}
		return fmt.Errorf("failed to renew lease on %s: %w", lease.Cluster, err)
	}
	lease.ExpiresAt = renewed.ExpiresAt
	return nil
}

// Load implements Coordinator.
func (c *RemoteCoordinator) Load(ctx context.Context, cluster string) (*ClusterState, error) {
	st, _, err := c.read(ctx, cluster)
	return st, err
}

// read returns the stored state and its ETag; the ETag is empty when no
// document exists yet.
func (c *RemoteCoordinator) read(ctx context.Context, cluster string) (*ClusterState, string, error) {
	obj, err := c.store.GetObject(ctx, naming.StateKey(c.prefix, cluster))
	if errors.Is(err, s3.ErrNotFound) {
		return New(cluster), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load state of %s: %w", cluster, err)
	}

	st, err := decodeState(cluster, obj.Data)
	if err != nil {
		return nil, "", err
	}
	return st, obj.ETag, nil
}

// Save implements Coordinator.
func (c *RemoteCoordinator) Save(ctx context.Context, lease *Lease, st *ClusterState, expectedVersion int64) error {
	if lease == nil || lease.Cluster != st.ClusterName {
		return fmt.Errorf("save %s: lease does not cover cluster: %w", st.ClusterName, ErrLeaseLost)
	}
	if err := c.checkLease(ctx, lease); err != nil {
		return err
	}

	current, etag, err := c.read(ctx, st.ClusterName)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return &VersionConflictError{Cluster: st.ClusterName, Expected: expectedVersion, Actual: current.Version}
	}

	next := st.Clone()
	next.Version = expectedVersion + 1
	next.UpdatedAt = c.now().UTC()

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	opts := s3.PutOptions{ContentType: "application/json"}
	if etag == "" {
		opts.IfNoneMatch = "*"
	} else {
		opts.IfMatch = etag
	}

	if _, err := c.store.PutObject(ctx, naming.StateKey(c.prefix, st.ClusterName), data, opts); err != nil {
		if errors.Is(err, s3.ErrPreconditionFailed) {
			actual := expectedVersion
			if latest, _, readErr := c.read(ctx, st.ClusterName); readErr == nil {
				actual = latest.Version
			}
			return &VersionConflictError{Cluster: st.ClusterName, Expected: expectedVersion, Actual: actual}
		}
		return fmt.Errorf("failed to save state of %s: %w", st.ClusterName, err)
	}

	st.Version = next.Version
	st.UpdatedAt = next.UpdatedAt
	return nil
}

// Release implements Coordinator.
func (c *RemoteCoordinator) Release(ctx context.Context, lease *Lease) error {
	if err := c.locks.DeleteLock(ctx, naming.LockID(lease.Cluster), lease.ID); err != nil {
		if errors.Is(err, dynamodb.ErrConditionFailed) {
			return fmt.Errorf("release lease on %s: %w", lease.Cluster, ErrLeaseLost)
		}
		return fmt.Errorf("failed to release lease on %s: %w", lease.Cluster, err)
	}
	return nil
}

// ForceUnlock implements Coordinator.
func (c *RemoteCoordinator) ForceUnlock(ctx context.Context, cluster string) error {
	if err := c.locks.ForceDeleteLock(ctx, naming.LockID(cluster)); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", cluster, err)
	}
	return nil
}

func (c *RemoteCoordinator) checkLease(ctx context.Context, lease *Lease) error {
	held, err := c.locks.GetLock(ctx, naming.LockID(lease.Cluster))
	if errors.Is(err, dynamodb.ErrNotFound) {
		return fmt.Errorf("lease %s on %s: %w", lease.ID, lease.Cluster, ErrLeaseLost)
	}
	if err != nil {
		return fmt.Errorf("failed to check lease on %s: %w", lease.Cluster, err)
	}
	if held.LeaseID != lease.ID || !c.now().Before(held.Expiry()) {
		return fmt.Errorf("lease %s on %s: %w", lease.ID, lease.Cluster, ErrLeaseLost)
	}
	return nil
}

func (c *RemoteCoordinator) lockItem(lease *Lease) dynamodb.LockItem {
	return dynamodb.LockItem{
		LockID:    naming.LockID(lease.Cluster),
		LeaseID:   lease.ID,
		Owner:     lease.Owner,
		ExpiresAt: lease.ExpiresAt.Unix(),
	}
}
