package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes phases in order and stops at the first failure. A
// cancelled context stops the pipeline before the next phase begins; a phase
// already running is expected to honour the context itself.
func RunPhases(ctx *Context, phases []Phase) error {
	started := ctx.Clock()
	ctx.Observer.Printf("Running %d phase(s)", len(phases))

	for i, phase := range phases {
		label := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("provisioning interrupted before %s phase: %w", phase.Name(), err)
		}
		if err := runPhase(ctx, phase, label); err != nil {
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}
	}

	ctx.Observer.Printf("All phases completed in %v", elapsed(ctx, started))
	return nil
}

func runPhase(ctx *Context, phase Phase, label string) error {
	LogPhaseStart(ctx.Observer, label)
	started := ctx.Clock()
	if err := phase.Provision(ctx); err != nil {
		LogPhaseFailed(ctx.Observer, label, err)
		return err
	}
	LogPhaseComplete(ctx.Observer, label, elapsed(ctx, started))
	return nil
}

func elapsed(ctx *Context, since time.Time) time.Duration {
	return ctx.Clock().Sub(since).Round(time.Millisecond)
}
