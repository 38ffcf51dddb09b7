package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCoordinator is an in-process Coordinator. Documents are kept
// serialized so callers never share memory with the stored state.
type MemoryCoordinator struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[string]*Lease
	docs   map[string][]byte
	saves  int
}

// MemoryOption configures a MemoryCoordinator.
type MemoryOption func(*MemoryCoordinator)

// WithLeaseTTL sets the lease lifetime.
func WithLeaseTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryCoordinator) { m.ttl = ttl }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryCoordinator) { m.now = now }
}

// NewMemoryCoordinator returns an empty in-process coordinator.
func NewMemoryCoordinator(opts ...MemoryOption) *MemoryCoordinator {
	m := &MemoryCoordinator{
		ttl:    15 * time.Minute,
		now:    time.Now,
		leases: map[string]*Lease{},
		docs:   map[string][]byte{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire implements Coordinator.
func (m *MemoryCoordinator) Acquire(_ context.Context, cluster string) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.leases[cluster]; ok && now.Before(held.ExpiresAt) {
		return nil, &LockContentionError{Cluster: cluster, Holder: held.Owner, ExpiresAt: held.ExpiresAt}
	}

	lease := &Lease{
		Cluster:    cluster,
		ID:         uuid.NewString(),
		Owner:      "memory",
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	held := *lease
	m.leases[cluster] = &held
	return lease, nil
}

// Renew implements Coordinator.
func (m *MemoryCoordinator) Renew(_ context.Context, lease *Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLease(lease); err != nil {
		return err
	}
	lease.ExpiresAt = m.now().Add(m.ttl)
	m.leases[lease.Cluster].ExpiresAt = lease.ExpiresAt
	return nil
}

// Load implements Coordinator.
func (m *MemoryCoordinator) Load(_ context.Context, cluster string) (*ClusterState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.load(cluster)
}

func (m *MemoryCoordinator) load(cluster string) (*ClusterState, error) {
	data, ok := m.docs[cluster]
	if !ok {
		return New(cluster), nil
	}
	return decodeState(cluster, data)
}

// Save implements Coordinator.
func (m *MemoryCoordinator) Save(_ context.Context, lease *Lease, st *ClusterState, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lease == nil || lease.Cluster != st.ClusterName {
		return fmt.Errorf("save %s: lease does not cover cluster: %w", st.ClusterName, ErrLeaseLost)
	}
	if err := m.checkLease(lease); err != nil {
		return err
	}

	current, err := m.load(st.ClusterName)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return &VersionConflictError{Cluster: st.ClusterName, Expected: expectedVersion, Actual: current.Version}
	}

	next := st.Clone()
	next.Version = expectedVersion + 1
	next.UpdatedAt = m.now().UTC()

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	m.docs[st.ClusterName] = data
	m.saves++

	st.Version = next.Version
	st.UpdatedAt = next.UpdatedAt
	return nil
}

// Release implements Coordinator.
func (m *MemoryCoordinator) Release(_ context.Context, lease *Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLease(lease); err != nil {
		return err
	}
	delete(m.leases, lease.Cluster)
	return nil
}

// ForceUnlock implements Coordinator.
func (m *MemoryCoordinator) ForceUnlock(_ context.Context, cluster string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.leases, cluster)
	return nil
}

// Saves returns the number of successful saves.
func (m *MemoryCoordinator) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Locked reports whether an unexpired lease is held for cluster.
func (m *MemoryCoordinator) Locked(cluster string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, ok := m.leases[cluster]
	return ok && m.now().Before(held.ExpiresAt)
}

func (m *MemoryCoordinator) checkLease(lease *Lease) error {
	held, ok := m.leases[lease.Cluster]
	if !ok || held.ID != lease.ID || !m.now().Before(held.ExpiresAt) {
		return fmt.Errorf("lease %s on %s: %w", lease.ID, lease.Cluster, ErrLeaseLost)
	}
	return nil
}

func decodeState(cluster string, data []byte) (*ClusterState, error) {
	var st ClusterState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode state of cluster %s: %w", cluster, err)
	}
	if st.ClusterName != cluster {
		return nil, fmt.Errorf("state document belongs to cluster %q, not %q", st.ClusterName, cluster)
	}
	if st.Nodes == nil {
		st.Nodes = map[string]*Node{}
	}
	return &st, nil
}
