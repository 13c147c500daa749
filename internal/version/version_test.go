package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
}

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	commit, built := fromBuildInfo(settings, "none", "unknown")
	require.Equal(t, "0123456-dirty", commit)
	require.Equal(t, "2026-01-02T03:04:05Z", built)

	// Values injected through ldflags win.
	commit, built = fromBuildInfo(settings[:2], "abc1234", "yesterday")
	require.Equal(t, "abc1234", commit)
	require.Equal(t, "yesterday", built)
}
