package deadman

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is a copy of the engine state at a point in time.
type Snapshot struct {
	// Phase is the current escalation stage.
	Phase Phase
	// Deadline is when the current countdown expires. It carries the
	// monotonic reading of the engine clock.
	Deadline time.Time
	// Window is the full length of the current countdown.
	Window time.Duration
	// LastCheckIn is the time of the latest accepted check-in (zero if none).
	LastCheckIn time.Time
	// LastSource identifies the front-end of the latest accepted check-in.
	LastSource string
	// Generation increases on every check-in and on Warning expiry.
	Generation uint64
}

// Remaining returns the time left until the deadline, never negative.
// It is always zero once triggered.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	if s.Phase.IsTerminal() {
		return 0
	}

	remaining := s.Deadline.Sub(now)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Status renders the snapshot for display at the provided time.
func (s Snapshot) Status(now time.Time) Status {
	remaining := s.Remaining(now)

	var percent uint8
	if s.Window > 0 && remaining > 0 {
		percent = uint8(float64(remaining) / float64(s.Window) * 100) //nolint:gosec // Bounded to [0, 100].
	}

	return Status{
		Phase:            s.Phase,
		SecondsRemaining: int64(remaining / time.Second),
		RemainingPercent: percent,
		Label:            FormatDuration(remaining),
		Generation:       s.Generation,
		LastCheckIn:      s.LastCheckIn,
	}
}

// Status is the read-only view of the switch offered to front-ends.
type Status struct {
	// Phase is the current escalation stage.
	Phase Phase
	// SecondsRemaining is the whole number of seconds until the deadline.
	SecondsRemaining int64
	// RemainingPercent is the share of the current countdown still left.
	RemainingPercent uint8
	// Label is a human-readable rendering of the remaining time.
	Label string
	// Generation is the engine generation the status was taken at.
	Generation uint64
	// LastCheckIn is the time of the latest accepted check-in (zero if none).
	LastCheckIn time.Time
}

// CheckInRequest is a single proof-of-life signal from a front-end.
type CheckInRequest struct {
	// Source identifies the front-end, e.g. "terminal" or "web:10.0.0.3".
	Source string
	// Timestamp is when the front-end observed the operator action.
	Timestamp time.Time
}

// FormatDuration renders a duration as "N day(s), N hour(s), N minute(s), N second(s)",
// omitting zero components. Zero renders as "0 second(s)".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	var (
		totalSeconds = int64(d / time.Second)
		days         = totalSeconds / 86400
		hours        = totalSeconds / 3600 % 24
		minutes      = totalSeconds / 60 % 60
		seconds      = totalSeconds % 60
		parts        = make([]string, 0, 4)
	)

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", days))
	}

	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hour(s)", hours))
	}

	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d minute(s)", minutes))
	}

	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d second(s)", seconds))
	}

	return strings.Join(parts, ", ")
}
