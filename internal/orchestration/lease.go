package orchestration

import (
	"context"
	"fmt"
	"time"
)

const minHeartbeat = 10 * time.Millisecond

// heartbeat renews the lease at a third of its lifetime until the returned
// stop function is called. If a renewal fails the run is cancelled with
// the renewal error as cause.
func (r *run) heartbeat(ctx context.Context, cancel context.CancelCauseFunc) (stop func()) {
	interval := r.lease.ExpiresAt.Sub(r.lease.AcquiredAt) / 3
	if interval < minHeartbeat {
		interval = minHeartbeat
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.leaseMu.Lock()
				err := r.coordinator.Renew(ctx, r.lease)
				r.leaseMu.Unlock()
				if err != nil && ctx.Err() == nil {
					r.observer.Printf("lease renewal failed, stopping run: %v", err)
					cancel(fmt.Errorf("lease renewal failed: %w", err))
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// release stops the heartbeat and gives the lease up with a detached context.
func (r *run) release(ctx context.Context, stopHeartbeat func()) {
	stopHeartbeat()

	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()

	r.leaseMu.Lock()
	defer r.leaseMu.Unlock()
	if err := r.coordinator.Release(relCtx, r.lease); err != nil {
		r.observer.Printf("failed to release lease %s: %v", r.lease.ID, err)
		return
	}
	r.observer.Printf("released lease %s", r.lease.ID)
}
