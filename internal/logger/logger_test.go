package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from names to levels and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"TRACE":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got, s)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

// TestContextLogger checks that named loggers with fields travel in the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf))
	ctx = WithName(ctx, "engine")
	ctx = WithKV(ctx, "generation", 3)

	InfoKV(ctx, "Phase changed", "phase", "DeadMan")

	out := buf.String()
	require.Contains(t, out, "engine")
	require.Contains(t, out, "Phase changed")
	require.Contains(t, out, "generation")
	require.Contains(t, out, "DeadMan")

	// A bare context falls back to the global logger.
	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestSetOutput checks that derived loggers follow the redirected output.
//
//nolint:paralleltest // Swaps the process-wide output.
func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer

	ctx := WithName(context.Background(), "terminal")

	previous := SetOutput(&buf)
	defer SetOutput(previous)

	Info(ctx, "Redirected")
	Info(context.Background(), "Global")

	require.Contains(t, buf.String(), "Redirected")
	require.Contains(t, buf.String(), "Global")
	require.Contains(t, buf.String(), "terminal")
}
