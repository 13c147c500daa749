package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnknownKind is returned by ParseKind for names it does not know.
var ErrUnknownKind = errors.New("unknown journal event kind")

// Kind is the type of a journal event.
type Kind uint8

const (
	// KindCheckIn records an accepted check-in.
	KindCheckIn Kind = iota + 1
	// KindExpiry records a countdown expiry and the job it created.
	KindExpiry
	// KindDelivery records the outcome of an escalation job.
	KindDelivery
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCheckIn:
		return "check_in"
	case KindExpiry:
		return "expiry"
	case KindDelivery:
		return "delivery"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, kind := range []Kind{KindCheckIn, KindExpiry, KindDelivery} {
		if strings.EqualFold(s, kind.String()) {
			return kind, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Event is one journal record. Integer keys keep the file compact.
type Event struct {
	Timestamp  time.Time `cbor:"1,keyasint"`
	Kind       Kind      `cbor:"2,keyasint"`
	Phase      string    `cbor:"3,keyasint,omitempty"`
	Generation uint64    `cbor:"4,keyasint"`
	Source     string    `cbor:"5,keyasint,omitempty"`
	JobID      string    `cbor:"6,keyasint,omitempty"`
	JobKind    string    `cbor:"7,keyasint,omitempty"`
	Attempts   int       `cbor:"8,keyasint,omitempty"`
	Error      string    `cbor:"9,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() { //nolint:gochecknoinits // Modes are immutable and shared.
	var err error

	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("create journal encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("create journal decoder mode: %v", err))
	}
}
