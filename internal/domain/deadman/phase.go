package deadman

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is the escalation stage of the switch.
type Phase uint8

const (
	// PhaseWarning is the first countdown. Its expiry sends the warning message.
	PhaseWarning Phase = iota
	// PhaseDeadMan is the second countdown. Its expiry sends the final message.
	PhaseDeadMan
	// PhaseTriggered is terminal: the final message was dispatched.
	PhaseTriggered
)

// errUnknownPhase is returned by ParsePhase for unrecognized names.
var errUnknownPhase = errors.New("unknown phase")

// String returns the phase name used in logs and API payloads.
func (p Phase) String() string {
	switch p {
	case PhaseWarning:
		return "Warning"
	case PhaseDeadMan:
		return "DeadMan"
	case PhaseTriggered:
		return "Triggered"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseTriggered
}

// ParsePhase converts a phase name back into a Phase. Matching is case-insensitive.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return PhaseWarning, nil
	case "deadman", "dead_man", "dead-man":
		return PhaseDeadMan, nil
	case "triggered":
		return PhaseTriggered, nil
	default:
		return PhaseWarning, fmt.Errorf("%w: %q", errUnknownPhase, s)
	}
}
