package watcher

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

// sequenceClient returns the scripted statuses in order and repeats the last one.
type sequenceClient struct {
	statuses []domain.Status
	errs     []error
	calls    int
}

func (s *sequenceClient) GetStatus(context.Context) (domain.Status, error) {
	i := min(s.calls, len(s.statuses)-1)
	s.calls++

	if i < len(s.errs) && s.errs[i] != nil {
		return domain.Status{}, s.errs[i]
	}

	return s.statuses[i], nil
}

// TestWatch_Check tracks phases and reports the trigger.
func TestWatch_Check(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	conn := &sequenceClient{statuses: []domain.Status{
		{Phase: domain.PhaseWarning, Generation: 0},
		{Phase: domain.PhaseWarning, Generation: 1},
		{Phase: domain.PhaseDeadMan, Generation: 2},
		{Phase: domain.PhaseTriggered, Generation: 2},
	}}

	w := new(watch)

	require.NoError(t, w.check(ctx, conn))
	require.NoError(t, w.check(ctx, conn))
	require.Equal(t, uint64(1), w.generation)
	require.NoError(t, w.check(ctx, conn))
	require.Equal(t, domain.PhaseDeadMan, w.phase)
	require.ErrorIs(t, w.check(ctx, conn), errTriggered)
}

// TestPoll_ExitsOnTrigger polls on the bubble clock until the switch fires.
func TestPoll_ExitsOnTrigger(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		conn := &sequenceClient{
			statuses: []domain.Status{
				{Phase: domain.PhaseWarning},
				{Phase: domain.PhaseWarning},
				{Phase: domain.PhaseDeadMan},
				{Phase: domain.PhaseTriggered},
			},
			errs: []error{nil, errors.New("unavailable")},
		}

		start := time.Now()

		require.NoError(t, poll(context.Background(), conn, time.Second))
		require.Equal(t, 4, conn.calls)
		require.Equal(t, 3*time.Second, time.Since(start))
	})
}

// TestPoll_StopsOnCancel returns nil when the context ends.
func TestPoll_StopsOnCancel(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10500*time.Millisecond)
		defer cancel()

		conn := &sequenceClient{statuses: []domain.Status{{Phase: domain.PhaseWarning}}}

		require.NoError(t, poll(ctx, conn, time.Second))
		require.Equal(t, 11, conn.calls)
	})
}
