package journal

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// ErrClosed is returned when recording into a closed writer.
var ErrClosed = errors.New("journal is closed")

// filePermissions restricts the journal to its owner.
const filePermissions = 0o600

// Writer appends events to a journal file. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// Open opens path for appending, creating it when needed.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	return &Writer{
		file:    f,
		encoder: encMode.NewEncoder(f),
	}, nil
}

// Record appends one event.
func (w *Writer) Record(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if err := w.encoder.Encode(event); err != nil {
		return fmt.Errorf("encode %s event: %w", event.Kind, err)
	}

	return nil
}

// Close syncs and closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	return errors.Join(w.file.Sync(), w.file.Close())
}
