package state

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLockContention means another run holds the cluster lease.
	ErrLockContention = errors.New("lock contention")

	// ErrVersionConflict means the state was advanced by another writer.
	ErrVersionConflict = errors.New("version conflict")

	// ErrLeaseLost means the lease expired or was taken over.
	ErrLeaseLost = errors.New("lease lost")

	// ErrIllegalTransition is a lifecycle edge that does not exist.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// LockContentionError is returned by Acquire when the lease is held.
type LockContentionError struct {
	Cluster   string
	Holder    string
	ExpiresAt time.Time
}

func (e *LockContentionError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("cluster %q is locked by another run", e.Cluster)
	}
	return fmt.Sprintf("cluster %q is locked by %s until %s", e.Cluster, e.Holder, e.ExpiresAt.UTC().Format(time.RFC3339))
}

// Is matches ErrLockContention.
func (e *LockContentionError) Is(target error) bool {
	return target == ErrLockContention
}

// VersionConflictError is returned by Save when expectedVersion is stale.
type VersionConflictError struct {
	Cluster  string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("state of cluster %q changed concurrently (expected version %d, found %d); re-run to retry",
		e.Cluster, e.Expected, e.Actual)
}

// Is matches ErrVersionConflict.
func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
