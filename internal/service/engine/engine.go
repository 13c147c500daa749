package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
)

// ErrInvalidDuration is returned by New when a countdown is not positive.
var ErrInvalidDuration = errors.New("invalid countdown duration")

// errNoDispatcher is returned by New when no dispatcher is provided.
var errNoDispatcher = errors.New("dispatcher is required")

// Dispatcher receives escalation jobs after their transition is committed.
// Dispatch must not block on delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.EmailJob)
}

// Transition describes a committed state change.
type Transition struct {
	// From is the phase before the change.
	From domain.Phase
	// State is the engine state right after the change.
	State domain.Snapshot
	// At is the engine clock reading of the change.
	At time.Time
	// Source is the check-in source; empty for expiries.
	Source string
	// Job is the escalation created by an expiry; nil for check-ins.
	Job *domain.EmailJob
}

// Observer is notified of every committed transition, outside the lock.
type Observer func(ctx context.Context, t Transition)

// Settings are the countdown lengths, fixed for the engine lifetime.
type Settings struct {
	// WarningDuration is the length of the Warning countdown.
	WarningDuration time.Duration
	// DeadManDuration is the length of the DeadMan countdown.
	DeadManDuration time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithObserver registers a transition observer.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// jobKey identifies the expiry an EmailJob was created for.
type jobKey struct {
	phase      domain.Phase
	generation uint64
}

// Engine is the switch state machine. Create it with New.
type Engine struct {
	// settings holds the countdown lengths.
	settings Settings
	// clock provides time readings and timers.
	clock clockwork.Clock
	// dispatcher receives escalation jobs.
	dispatcher Dispatcher
	// observer is notified about committed transitions (optional).
	observer Observer

	// mu guards state, lastJob and started.
	mu sync.RWMutex
	// state is the live switch state.
	state domain.Snapshot
	// lastJob is the key of the most recently created job. Keys only grow,
	// so comparing with the last one is enough to refuse duplicates.
	lastJob *jobKey
	// started is set once the tick loop armed the first countdown.
	started bool

	// wake nudges the tick loop to reschedule after a check-in.
	wake chan struct{}
	// done is closed once the switch is triggered.
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an engine in the Warning phase. Its deadline is provisional:
// Run restarts the first countdown when the tick loop begins.
func New(settings Settings, dispatcher Dispatcher, opts ...Option) (*Engine, error) {
	if settings.WarningDuration <= 0 {
		return nil, fmt.Errorf("warning: %w: %s", ErrInvalidDuration, settings.WarningDuration)
	}

	if settings.DeadManDuration <= 0 {
		return nil, fmt.Errorf("dead man: %w: %s", ErrInvalidDuration, settings.DeadManDuration)
	}

	if dispatcher == nil {
		return nil, errNoDispatcher
	}

	e := &Engine{
		settings:   settings,
		clock:      clockwork.NewRealClock(),
		dispatcher: dispatcher,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.state = domain.Snapshot{
		Phase:    domain.PhaseWarning,
		Deadline: e.clock.Now().Add(settings.WarningDuration),
		Window:   settings.WarningDuration,
	}

	return e, nil
}

// start rebases the first Warning deadline on the current time, unless a
// check-in or an expiry already moved it. Only the first call has an effect.
func (e *Engine) start(ctx context.Context) {
	e.mu.Lock()

	if e.started {
		e.mu.Unlock()

		return
	}

	e.started = true

	if e.state.Phase != domain.PhaseWarning || e.state.Generation != 0 {
		e.mu.Unlock()

		return
	}

	e.state.Deadline = e.clock.Now().Add(e.settings.WarningDuration)
	deadline := e.state.Deadline

	e.mu.Unlock()

	logger.DebugKV(ctx, "Countdown started", "deadline", deadline.Format(time.RFC3339))
}

// CheckIn resets the switch to Warning with a fresh deadline and bumps the
// generation. After the switch triggered it returns ErrAlreadyTriggered and
// changes nothing.
func (e *Engine) CheckIn(ctx context.Context, source string) (domain.Status, error) {
	e.mu.Lock()

	now := e.clock.Now()

	if e.state.Phase.IsTerminal() {
		snapshot := e.state
		e.mu.Unlock()

		return snapshot.Status(now), domain.ErrAlreadyTriggered
	}

	from := e.state.Phase

	e.state.Phase = domain.PhaseWarning
	e.state.Deadline = now.Add(e.settings.WarningDuration)
	e.state.Window = e.settings.WarningDuration
	e.state.LastCheckIn = now
	e.state.LastSource = source
	e.state.Generation++

	snapshot := e.state

	e.mu.Unlock()

	e.nudge()

	logger.InfoKV(ctx, "Checked in",
		"source", source,
		"from_phase", from.String(),
		"generation", snapshot.Generation,
		"next_deadline_in", e.settings.WarningDuration.String())

	e.notify(ctx, Transition{
		From:   from,
		State:  snapshot,
		At:     now,
		Source: source,
	})

	return snapshot.Status(now), nil
}

// Tick evaluates expiry at now against the current generation.
// It reports whether a transition was committed.
func (e *Engine) Tick(ctx context.Context, now time.Time) bool {
	e.mu.RLock()
	generation := e.state.Generation
	e.mu.RUnlock()

	if !e.tickGeneration(ctx, generation, now) {
		return false
	}

	// The tick loop may be sleeping on the old deadline.
	e.nudge()

	return true
}

// tickGeneration evaluates expiry for a tick scheduled under generation.
// A tick whose generation is no longer live is stale and does nothing.
func (e *Engine) tickGeneration(ctx context.Context, generation uint64, now time.Time) bool {
	e.mu.Lock()

	if e.state.Generation != generation {
		live := e.state.Generation
		e.mu.Unlock()

		logger.DebugKV(ctx, "Discarding stale tick", "scheduled_generation", generation, "live_generation", live)

		return false
	}

	if e.state.Phase.IsTerminal() || now.Before(e.state.Deadline) {
		e.mu.Unlock()

		return false
	}

	key := jobKey{phase: e.state.Phase, generation: generation}
	if e.lastJob != nil && *e.lastJob == key {
		e.mu.Unlock()

		return false
	}

	e.lastJob = &key

	from := e.state.Phase
	job := &domain.EmailJob{
		ID:         uuid.NewString(),
		Generation: generation,
		CreatedAt:  now,
	}

	switch from {
	case domain.PhaseWarning:
		job.Kind = domain.JobWarning

		e.state.Phase = domain.PhaseDeadMan
		e.state.Deadline = now.Add(e.settings.DeadManDuration)
		e.state.Window = e.settings.DeadManDuration
		e.state.Generation++
	case domain.PhaseDeadMan:
		job.Kind = domain.JobFinal

		e.state.Phase = domain.PhaseTriggered
	case domain.PhaseTriggered:
		// Unreachable, handled above.
	}

	snapshot := e.state

	e.mu.Unlock()

	if snapshot.Phase.IsTerminal() {
		e.doneOnce.Do(func() { close(e.done) })
	}

	logger.WarnKV(ctx, "Countdown expired",
		"from_phase", from.String(),
		"to_phase", snapshot.Phase.String(),
		"generation", snapshot.Generation,
		"job_id", job.ID,
		"job_kind", job.Kind.String())

	e.notify(ctx, Transition{
		From:  from,
		State: snapshot,
		At:    now,
		Job:   job.Clone(),
	})

	e.dispatcher.Dispatch(ctx, job)

	return true
}

// Status returns the read-only view of the switch.
func (e *Engine) Status() domain.Status {
	snapshot := e.Snapshot()

	return snapshot.Status(e.clock.Now())
}

// Snapshot returns a copy of the live state.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state
}

// Done is closed once the switch is triggered.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// nudge wakes the tick loop without blocking.
func (e *Engine) nudge() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// notify forwards a transition to the observer, if any.
func (e *Engine) notify(ctx context.Context, t Transition) {
	if e.observer != nil {
		e.observer(ctx, t)
	}
}
