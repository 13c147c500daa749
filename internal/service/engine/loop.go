package engine

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/oshokin/dead-man-switch/internal/logger"
)

// Run owns the tick loop. It sleeps until the current deadline, wakes early
// when a check-in moves it, and evaluates expiry for the generation it was
// scheduled under. It returns when ctx is canceled or the switch triggered.
func (e *Engine) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "engine")

	e.start(ctx)

	for {
		snapshot := e.Snapshot()
		if snapshot.Phase.IsTerminal() {
			logger.Info(ctx, "Switch triggered, tick loop finished")

			return nil
		}

		wait := snapshot.Deadline.Sub(e.clock.Now())
		if wait <= 0 {
			e.tickGeneration(ctx, snapshot.Generation, e.clock.Now())

			continue
		}

		logger.DebugKV(ctx, "Scheduling tick",
			"phase", snapshot.Phase.String(),
			"generation", snapshot.Generation,
			"wait", wait.String())

		timer := e.clock.NewTimer(wait)

		select {
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			logger.Info(ctx, "Context canceled, tick loop stopped")

			return nil
		case <-e.wake:
			stopAndDrainTimer(timer)
		case <-timer.Chan():
			e.tickGeneration(ctx, snapshot.Generation, e.clock.Now())
		}
	}
}

// stopAndDrainTimer stops a timer and drains a pending fire.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
