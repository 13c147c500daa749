package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	// Kind keeps only events of this kind.
	Kind Kind
	// Since keeps only events at or after this time.
	Since time.Time
}

func (f Filter) matches(event Event) bool {
	if f.Kind != 0 && event.Kind != f.Kind {
		return false
	}

	return f.Since.IsZero() || !event.Timestamp.Before(f.Since)
}

// ReadAll decodes every event of the journal at path matching filter.
func ReadAll(path string, filter Filter) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	defer f.Close()

	return Decode(f, filter)
}

// Decode reads events from r until EOF.
func Decode(r io.Reader, filter Filter) ([]Event, error) {
	var (
		decoder = decMode.NewDecoder(r)
		events  []Event
	)

	for {
		var event Event

		err := decoder.Decode(&event)
		if errors.Is(err, io.EOF) {
			return events, nil
		}

		if err != nil {
			return events, fmt.Errorf("decode journal event %d: %w", len(events)+1, err)
		}

		if filter.matches(event) {
			events = append(events, event)
		}
	}
}
