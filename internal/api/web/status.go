package web

import (
	"time"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

// statusPayload is the JSON form of a status served by /timer and /ws.
type statusPayload struct {
	TimerType          string `json:"timer_type"`
	TimeLeftPercentage uint8  `json:"time_left_percentage"`
	TimeLeftSeconds    int64  `json:"time_left_seconds"`
	Label              string `json:"label"`
	Generation         uint64 `json:"generation"`
	LastCheckIn        string `json:"last_check_in,omitempty"`
	Triggered          bool   `json:"triggered"`
}

// errorPayload is the JSON body of failed JSON requests.
type errorPayload struct {
	Error  string        `json:"error"`
	Status statusPayload `json:"status"`
}

func newStatusPayload(st domain.Status) statusPayload {
	payload := statusPayload{
		TimerType:          st.Phase.String(),
		TimeLeftPercentage: st.RemainingPercent,
		TimeLeftSeconds:    st.SecondsRemaining,
		Label:              st.Label,
		Generation:         st.Generation,
		Triggered:          st.Phase.IsTerminal(),
	}

	if !st.LastCheckIn.IsZero() {
		payload.LastCheckIn = st.LastCheckIn.UTC().Format(time.RFC3339)
	}

	return payload
}

// phaseTitle is the human name of a phase on the dashboard.
func phaseTitle(phase domain.Phase) string {
	switch phase {
	case domain.PhaseWarning:
		return "Warning"
	case domain.PhaseDeadMan:
		return "Dead Man"
	case domain.PhaseTriggered:
		return "Triggered"
	default:
		return phase.String()
	}
}
