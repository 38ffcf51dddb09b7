package testing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/imamik/splunkctl/internal/platform/ec2"
)

// FakeEC2 is an in-memory EC2 backend. Launched instances start pending and
// turn running after PendingPolls describe calls.
type FakeEC2 struct {
	// PendingPolls is how many describes a new instance stays pending.
	PendingPolls int
	// LaunchHook runs before every launch; a non-nil error fails the launch.
	LaunchHook func(ctx context.Context, in ec2.LaunchInput) error
	// DescribeHook runs before every describe; a non-nil error is returned as is.
	DescribeHook func(ctx context.Context, id string, call int) error
	// FindHook runs before every tag lookup; a non-nil error is returned as is.
	FindHook func(ctx context.Context, tags map[string]string) error
	// TagHook runs before every tag update; a non-nil error is returned as is.
	TagHook func(ctx context.Context, id string) error

	mu        sync.Mutex
	instances map[string]*ec2.Instance
	describes map[string]int
	launches  []ec2.LaunchInput
	seq       int
	clock     time.Time
}

// NewFakeEC2 creates an empty backend.
func NewFakeEC2() *FakeEC2 {
	return &FakeEC2{
		instances: make(map[string]*ec2.Instance),
		describes: make(map[string]int),
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// RunInstance implements compute.Backend.
func (f *FakeEC2) RunInstance(ctx context.Context, in ec2.LaunchInput) (*ec2.Instance, error) {
	if f.LaunchHook != nil {
		if err := f.LaunchHook(ctx, in); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	f.clock = f.clock.Add(time.Second)
	inst := &ec2.Instance{
		ID:         fmt.Sprintf("i-%017d", f.seq),
		State:      ec2.StatePending,
		PrivateIP:  fmt.Sprintf("10.0.%d.%d", f.seq/200, 10+f.seq%200),
		LaunchTime: f.clock,
		Tags:       maps.Clone(in.Tags),
	}
	if in.AssociatePublicIP {
		inst.PublicIP = fmt.Sprintf("54.0.%d.%d", f.seq/200, 10+f.seq%200)
	}
	if f.PendingPolls <= 0 {
		inst.State = ec2.StateRunning
	}
	f.instances[inst.ID] = inst
	f.launches = append(f.launches, in)
	return cloneInstance(inst), nil
}

// DescribeInstance implements compute.Backend.
func (f *FakeEC2) DescribeInstance(ctx context.Context, id string) (*ec2.Instance, error) {
	f.mu.Lock()
	f.describes[id]++
	call := f.describes[id]
	f.mu.Unlock()

	if f.DescribeHook != nil {
		if err := f.DescribeHook(ctx, id, call); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	inst, ok := f.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, ec2.ErrNotFound)
	}
	if inst.State == ec2.StatePending && call > f.PendingPolls {
		inst.State = ec2.StateRunning
	}
	return cloneInstance(inst), nil
}

// FindInstances implements compute.Backend.
func (f *FakeEC2) FindInstances(ctx context.Context, tags map[string]string) ([]*ec2.Instance, error) {
	if f.FindHook != nil {
		if err := f.FindHook(ctx, tags); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*ec2.Instance
	for _, inst := range f.instances {
		if inst.Gone() {
			continue
		}
		match := true
		for k, v := range tags {
			if inst.Tags[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, cloneInstance(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LaunchTime.After(out[j].LaunchTime) })
	return out, nil
}

// CreateTags implements compute.Backend.
func (f *FakeEC2) CreateTags(ctx context.Context, id string, tags map[string]string) error {
	if f.TagHook != nil {
		if err := f.TagHook(ctx, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	inst, ok := f.instances[id]
	if !ok {
		return fmt.Errorf("instance %s: %w", id, ec2.ErrNotFound)
	}
	maps.Copy(inst.Tags, tags)
	return nil
}

// Put seeds an instance, for example one launched by an earlier crashed run.
func (f *FakeEC2) Put(inst *ec2.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[inst.ID] = cloneInstance(inst)
}

// SetState changes the state of an instance.
func (f *FakeEC2) SetState(id, st string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inst, ok := f.instances[id]; ok {
		inst.State = st
	}
}

// Delete removes an instance entirely, as if it aged out of the API.
func (f *FakeEC2) Delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, id)
}

// Instance returns a copy of an instance.
func (f *FakeEC2) Instance(id string) (*ec2.Instance, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	return cloneInstance(inst), ok
}

// Launches returns the inputs of every launch so far.
func (f *FakeEC2) Launches() []ec2.LaunchInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.launches)
}

// LaunchCount returns the number of launched instances.
func (f *FakeEC2) LaunchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

func cloneInstance(inst *ec2.Instance) *ec2.Instance {
	if inst == nil {
		return nil
	}
	c := *inst
	c.Tags = maps.Clone(inst.Tags)
	return &c
}
