package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalTOML(t *testing.T) {
	t.Parallel()

	var d Duration

	require.NoError(t, d.UnmarshalTOML(int64(604800)))
	require.Equal(t, Duration(7*24*time.Hour), d)

	require.NoError(t, d.UnmarshalTOML("1h30m"))
	require.Equal(t, Duration(90*time.Minute), d)

	require.NoError(t, d.UnmarshalTOML("42"))
	require.Equal(t, Duration(42*time.Second), d)

	require.ErrorIs(t, d.UnmarshalTOML(1.5), errInvalidDuration)
	require.ErrorIs(t, d.UnmarshalTOML("fortnight"), errInvalidDuration)
	require.ErrorIs(t, d.UnmarshalTOML(int64(maxSeconds+1)), errInvalidDuration)
}

func TestDurationYAML(t *testing.T) {
	t.Parallel()

	var settings struct {
		Seconds Duration `yaml:"seconds"`
		Text    Duration `yaml:"text"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("seconds: 5\ntext: 250ms\n"), &settings))
	require.Equal(t, Duration(5*time.Second), settings.Seconds)
	require.Equal(t, Duration(250*time.Millisecond), settings.Text)

	err := yaml.Unmarshal([]byte("seconds: [1, 2]\n"), &settings)
	require.ErrorIs(t, err, errInvalidDuration)

	out, err := yaml.Marshal(settings)
	require.NoError(t, err)
	require.Contains(t, string(out), "seconds: 5s")
	require.Contains(t, string(out), "text: 250ms")
}
