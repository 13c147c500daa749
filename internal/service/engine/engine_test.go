package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

const (
	testWarning = 2 * time.Second
	testDeadMan = 3 * time.Second
)

// recorder is a Dispatcher that keeps every job it receives.
type recorder struct {
	mu   sync.Mutex
	jobs []*domain.EmailJob
}

// Dispatch stores the job.
func (r *recorder) Dispatch(_ context.Context, job *domain.EmailJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = append(r.jobs, job)
}

// count returns how many jobs of kind were dispatched.
func (r *recorder) count(kind domain.JobKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, job := range r.jobs {
		if job.Kind == kind {
			n++
		}
	}

	return n
}

// total returns how many jobs were dispatched.
func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.jobs)
}

// newTestEngine builds a 2s/3s engine on the provided clock.
func newTestEngine(t *testing.T, clock clockwork.Clock, dispatcher Dispatcher, opts ...Option) *Engine {
	t.Helper()

	if clock != nil {
		opts = append(opts, WithClock(clock))
	}

	e, err := New(Settings{WarningDuration: testWarning, DeadManDuration: testDeadMan}, dispatcher, opts...)
	require.NoError(t, err)

	return e
}

// TestNew_Validation rejects non-positive durations and a missing dispatcher.
func TestNew_Validation(t *testing.T) {
	t.Parallel()

	rec := new(recorder)

	_, err := New(Settings{WarningDuration: 0, DeadManDuration: time.Second}, rec)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = New(Settings{WarningDuration: time.Second, DeadManDuration: -time.Second}, rec)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = New(Settings{WarningDuration: time.Second, DeadManDuration: time.Second}, nil)
	require.Error(t, err)

	e := newTestEngine(t, clockwork.NewFakeClock(), rec)
	snapshot := e.Snapshot()
	require.Equal(t, domain.PhaseWarning, snapshot.Phase)
	require.Zero(t, snapshot.Generation)
	require.Equal(t, testWarning, snapshot.Window)
}

// TestEscalation_NoCheckIns walks Warning -> DeadMan -> Triggered with exactly two jobs.
func TestEscalation_NoCheckIns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	rec := new(recorder)
	e := newTestEngine(t, clock, rec)

	// Not expired yet.
	clock.Advance(1999 * time.Millisecond)
	require.False(t, e.Tick(ctx, clock.Now()))
	require.Zero(t, rec.total())

	// t=2s: warning fires once.
	clock.Advance(time.Millisecond)
	require.True(t, e.Tick(ctx, clock.Now()))
	require.False(t, e.Tick(ctx, clock.Now()))

	snapshot := e.Snapshot()
	require.Equal(t, domain.PhaseDeadMan, snapshot.Phase)
	require.Equal(t, uint64(1), snapshot.Generation)
	require.Equal(t, clock.Now().Add(testDeadMan), snapshot.Deadline)
	require.Equal(t, 1, rec.count(domain.JobWarning))
	require.Zero(t, rec.count(domain.JobFinal))

	// t=4s: still counting down.
	clock.Advance(2 * time.Second)
	require.False(t, e.Tick(ctx, clock.Now()))

	// t=5s: final fires once.
	clock.Advance(time.Second)
	require.True(t, e.Tick(ctx, clock.Now()))
	require.False(t, e.Tick(ctx, clock.Now()))

	require.Equal(t, domain.PhaseTriggered, e.Snapshot().Phase)
	require.Equal(t, 1, rec.count(domain.JobWarning))
	require.Equal(t, 1, rec.count(domain.JobFinal))
	require.Equal(t, 2, rec.total())

	select {
	case <-e.Done():
	default:
		t.Fatal("Done channel must be closed once triggered")
	}

	// Jobs carry the generation they were created under.
	require.Equal(t, uint64(0), rec.jobs[0].Generation)
	require.Equal(t, uint64(1), rec.jobs[1].Generation)
	require.NotEqual(t, rec.jobs[0].ID, rec.jobs[1].ID)
}

// TestCheckIn_BeforeWarningExpiry keeps the switch in Warning and moves the deadline.
func TestCheckIn_BeforeWarningExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	rec := new(recorder)
	e := newTestEngine(t, clock, rec)

	clock.Advance(1900 * time.Millisecond)

	status, err := e.CheckIn(ctx, "terminal")
	require.NoError(t, err)
	require.Equal(t, domain.PhaseWarning, status.Phase)
	require.Equal(t, int64(2), status.SecondsRemaining)

	snapshot := e.Snapshot()
	require.Equal(t, clock.Now().Add(testWarning), snapshot.Deadline)
	require.Equal(t, uint64(1), snapshot.Generation)
	require.Equal(t, "terminal", snapshot.LastSource)
	require.Equal(t, clock.Now(), snapshot.LastCheckIn)

	// The original deadline (t=2s) passes without effect.
	clock.Advance(200 * time.Millisecond)
	require.False(t, e.Tick(ctx, clock.Now()))
	require.Equal(t, domain.PhaseWarning, e.Snapshot().Phase)
	require.Zero(t, rec.count(domain.JobWarning))
}

// TestCheckIn_DuringDeadMan resets to Warning and no final job is ever created.
func TestCheckIn_DuringDeadMan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	rec := new(recorder)
	e := newTestEngine(t, clock, rec)

	clock.Advance(testWarning)
	require.True(t, e.Tick(ctx, clock.Now()))
	require.Equal(t, domain.PhaseDeadMan, e.Snapshot().Phase)

	// t=2.5s.
	clock.Advance(500 * time.Millisecond)

	status, err := e.CheckIn(ctx, "web")
	require.NoError(t, err)
	require.Equal(t, domain.PhaseWarning, status.Phase)
	require.Equal(t, uint64(2), e.Snapshot().Generation)

	// t=5s is where the old DeadMan countdown would have ended. The new
	// warning countdown ended at t=4.5s instead, so a fresh DeadMan runs.
	clock.Advance(2500 * time.Millisecond)
	require.True(t, e.Tick(ctx, clock.Now()))
	require.False(t, e.Tick(ctx, clock.Now()))

	require.Equal(t, domain.PhaseDeadMan, e.Snapshot().Phase)
	require.Zero(t, rec.count(domain.JobFinal))
	require.Equal(t, 2, rec.count(domain.JobWarning))
}

// TestCheckIn_AfterTriggered never mutates the state.
func TestCheckIn_AfterTriggered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	rec := new(recorder)
	e := newTestEngine(t, clock, rec)

	clock.Advance(testWarning)
	require.True(t, e.Tick(ctx, clock.Now()))
	clock.Advance(testDeadMan)
	require.True(t, e.Tick(ctx, clock.Now()))

	before := e.Snapshot()
	require.Equal(t, domain.PhaseTriggered, before.Phase)

	for range 5 {
		clock.Advance(time.Second)

		status, err := e.CheckIn(ctx, "terminal")
		require.ErrorIs(t, err, domain.ErrAlreadyTriggered)
		require.Equal(t, domain.PhaseTriggered, status.Phase)
		require.Equal(t, before, e.Snapshot())
		require.False(t, e.Tick(ctx, clock.Now()))
	}

	require.Equal(t, 2, rec.total())
}

// TestStaleTickDiscarded ensures an evaluation scheduled before a check-in does nothing.
func TestStaleTickDiscarded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	rec := new(recorder)
	e := newTestEngine(t, clock, rec)

	scheduled := e.Snapshot().Generation

	// Check-in lands at the very instant of the deadline, before the
	// scheduled evaluation takes the lock: the check-in wins.
	clock.Advance(testWarning)

	_, err := e.CheckIn(ctx, "terminal")
	require.NoError(t, err)

	require.False(t, e.tickGeneration(ctx, scheduled, clock.Now()))
	require.False(t, e.Tick(ctx, clock.Now()))
	require.Equal(t, domain.PhaseWarning, e.Snapshot().Phase)
	require.Zero(t, rec.total())
}

// TestConcurrentCheckIns collapse into a single deadline.
func TestConcurrentCheckIns(t *testing.T) {
	t.Parallel()

	const workers = 64

	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	rec := new(recorder)
	e := newTestEngine(t, clock, rec)

	clock.Advance(time.Second)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := e.CheckIn(ctx, "web")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	snapshot := e.Snapshot()
	require.Equal(t, domain.PhaseWarning, snapshot.Phase)
	require.Equal(t, clock.Now().Add(testWarning), snapshot.Deadline)
	require.Equal(t, uint64(workers), snapshot.Generation)
	require.Zero(t, rec.total())
}

// TestObserver receives check-ins and expiries with their jobs.
func TestObserver(t *testing.T) {
	t.Parallel()

	var (
		ctx         = context.Background()
		clock       = clockwork.NewFakeClock()
		transitions []Transition
	)

	e := newTestEngine(t, clock, new(recorder), WithObserver(func(_ context.Context, tr Transition) {
		transitions = append(transitions, tr)
	}))

	_, err := e.CheckIn(ctx, "grpc")
	require.NoError(t, err)

	clock.Advance(testWarning)
	require.True(t, e.Tick(ctx, clock.Now()))

	require.Len(t, transitions, 2)
	require.Equal(t, "grpc", transitions[0].Source)
	require.Nil(t, transitions[0].Job)
	require.Equal(t, domain.PhaseWarning, transitions[1].From)
	require.Equal(t, domain.PhaseDeadMan, transitions[1].State.Phase)
	require.NotNil(t, transitions[1].Job)
	require.Equal(t, domain.JobWarning, transitions[1].Job.Kind)
}
