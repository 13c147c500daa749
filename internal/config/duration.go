package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// errInvalidDuration is returned for duration values that cannot be read.
var errInvalidDuration = errors.New("invalid duration")

// maxSeconds is the largest number of seconds a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Duration is a time.Duration read from a configuration file.
// A bare integer is a number of seconds, as older configuration files
// store timers; a string is a Go duration such as "336h".
type Duration time.Duration

// String formats the duration like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText writes the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalTOML accepts integer seconds or a duration string.
func (d *Duration) UnmarshalTOML(value any) error {
	switch v := value.(type) {
	case int64:
		return d.setSeconds(v)
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("%w: unsupported TOML type %T", errInvalidDuration, value)
	}
}

// UnmarshalYAML accepts integer seconds or a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a scalar", errInvalidDuration, node.Line)
	}

	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)

	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return d.setSeconds(seconds)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidDuration, s, err)
	}

	*d = Duration(parsed)

	return nil
}

func (d *Duration) setSeconds(seconds int64) error {
	if seconds > maxSeconds || seconds < -maxSeconds {
		return fmt.Errorf("%w: %d seconds is out of range", errInvalidDuration, seconds)
	}

	*d = Duration(time.Duration(seconds) * time.Second)

	return nil
}
