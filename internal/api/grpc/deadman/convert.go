package deadman

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

// Status struct field names.
const (
	FieldPhase            = "phase"
	FieldSecondsRemaining = "seconds_remaining"
	FieldRemainingPercent = "remaining_percent"
	FieldLabel            = "label"
	FieldGeneration       = "generation"
	FieldLastCheckIn      = "last_check_in"
)

// StatusToStruct renders a status as a protobuf Struct.
func StatusToStruct(st domain.Status) (*structpb.Struct, error) {
	var lastCheckIn string
	if !st.LastCheckIn.IsZero() {
		lastCheckIn = st.LastCheckIn.UTC().Format(time.RFC3339)
	}

	return structpb.NewStruct(map[string]any{
		FieldPhase:            st.Phase.String(),
		FieldSecondsRemaining: st.SecondsRemaining,
		FieldRemainingPercent: st.RemainingPercent,
		FieldLabel:            st.Label,
		FieldGeneration:       st.Generation,
		FieldLastCheckIn:      lastCheckIn,
	})
}

// StatusFromStruct parses a Struct produced by StatusToStruct.
func StatusFromStruct(s *structpb.Struct) (domain.Status, error) {
	fields := s.GetFields()

	phase, err := domain.ParsePhase(fields[FieldPhase].GetStringValue())
	if err != nil {
		return domain.Status{}, fmt.Errorf("parse status: %w", err)
	}

	st := domain.Status{
		Phase:            phase,
		SecondsRemaining: int64(fields[FieldSecondsRemaining].GetNumberValue()),
		RemainingPercent: uint8(fields[FieldRemainingPercent].GetNumberValue()), //nolint:gosec // Bounded to [0, 100].
		Label:            fields[FieldLabel].GetStringValue(),
		Generation:       uint64(fields[FieldGeneration].GetNumberValue()),
	}

	if raw := fields[FieldLastCheckIn].GetStringValue(); raw != "" {
		st.LastCheckIn, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.Status{}, fmt.Errorf("parse last check-in %q: %w", raw, err)
		}
	}

	return st, nil
}
