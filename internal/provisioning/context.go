package provisioning

import (
	"context"
	"time"

	"github.com/imamik/splunkctl/internal/config"
)

// Context wraps all dependencies needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	Observer Observer
	Timeouts *config.Timeouts

	// Now is the clock used for node timestamps.
	Now func() time.Time
}

// NewContext creates a new provisioning context.
func NewContext(ctx context.Context, cfg *config.Config, observer Observer) *Context {
	if observer == nil {
		observer = NewLogrObserver(logrFromContext(ctx))
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Observer: observer,
		Timeouts: config.LoadTimeouts(),
		Now:      time.Now,
	}
}

// WithContext returns a shallow copy bound to ctx.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}

// Clock returns the configured clock, falling back to time.Now.
func (c *Context) Clock() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
