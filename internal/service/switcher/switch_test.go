package switcher

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/dead-man-switch/internal/config"
	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/instance"
	"github.com/oshokin/dead-man-switch/internal/journal"
	"github.com/oshokin/dead-man-switch/internal/service/common"
)

type recordingTransport struct {
	mu       sync.Mutex
	messages []*domain.Message
}

func (r *recordingTransport) Send(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg.Clone())

	return nil
}

func (r *recordingTransport) sent() []*domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*domain.Message(nil), r.messages...)
}

type fakeGuard struct {
	ensureErr  error
	terminated int
	calls      []string
}

func (f *fakeGuard) Name() string { return "deadman-switch" }

func (f *fakeGuard) Ensure() error {
	f.calls = append(f.calls, "ensure")

	return f.ensureErr
}

func (f *fakeGuard) TerminateOthers() (int, error) {
	f.calls = append(f.calls, "terminate")

	return f.terminated, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		SMTPServer:   "smtp.example.com",
		SMTPPort:     587,
		From:         "me@example.com",
		To:           "someone@example.com",
		Subject:      "final",
		Message:      "final body",
		TimerWarning: config.MinTimer,
		TimerDeadMan: config.MinTimer,
		GRPCAddress:  "127.0.0.1:0",
		JournalFile:  filepath.Join(t.TempDir(), "journal.cbor"),
	}

	require.NoError(t, config.Validate(cfg))

	return cfg
}

// TestSwitchEscalates runs the whole switch with short timers and checks
// both messages go out once and the journal records the escalation.
func TestSwitchEscalates(t *testing.T) {
	t.Parallel()

	var (
		cfg       = testConfig(t)
		transport = &recordingTransport{}
	)

	s, err := New(t.Context(), cfg, &Options{Transport: transport})
	require.NoError(t, err)
	require.NotEmpty(t, s.GRPCAddr())
	require.Empty(t, s.WebAddr())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(transport.sent()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, domain.PhaseTriggered, s.Arbiter().Status().Phase)

	_, err = s.Arbiter().CheckIn(t.Context(), domain.CheckInRequest{Source: "test"})
	require.ErrorIs(t, err, domain.ErrAlreadyTriggered)

	cancel()
	require.NoError(t, <-done)

	messages := transport.sent()
	require.Equal(t, cfg.From, messages[0].To)
	require.Equal(t, cfg.To, messages[1].To)
	require.Equal(t, "final", messages[1].Subject)

	events, err := journal.ReadAll(cfg.JournalFile, journal.Filter{})
	require.NoError(t, err)

	var kinds []journal.Kind
	for _, event := range events {
		kinds = append(kinds, event.Kind)
	}

	require.Equal(t, []journal.Kind{
		journal.KindExpiry, journal.KindDelivery, journal.KindExpiry, journal.KindDelivery,
	}, kinds)
}

// TestSwitchCheckInOverGRPC keeps the switch alive through the gRPC API.
func TestSwitchCheckInOverGRPC(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.TimerWarning = config.Duration(time.Hour)
	cfg.TimerDeadMan = config.Duration(time.Hour)

	s, err := New(t.Context(), cfg, &Options{Transport: &recordingTransport{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	client, err := common.Dial(t.Context(), s.GRPCAddr(), common.WithCallTimeout(time.Second))
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	st, err := client.CheckIn(t.Context(), "grpc:tester@host")
	require.NoError(t, err)
	require.Equal(t, domain.PhaseWarning, st.Phase)
	require.Equal(t, uint64(1), st.Generation)

	cancel()
	require.NoError(t, <-done)

	events, err := journal.ReadAll(cfg.JournalFile, journal.Filter{Kind: journal.KindCheckIn})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "grpc:tester@host", events[0].Source)
}

// TestNewFailsOnBusyAddress releases the journal when a listener cannot be opened.
func TestNewFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	first, err := New(t.Context(), cfg, &Options{Transport: &recordingTransport{}})
	require.NoError(t, err)

	t.Cleanup(func() { _ = first.closeOnError(nil) })

	cfg.GRPCAddress = first.GRPCAddr()

	_, err = New(t.Context(), cfg, &Options{Transport: &recordingTransport{}})
	require.Error(t, err)
}

func TestGuardInstance(t *testing.T) {
	t.Parallel()

	guard := &fakeGuard{}
	require.NoError(t, guardInstance(t.Context(), guard, false))
	require.Equal(t, []string{"ensure"}, guard.calls)

	guard = &fakeGuard{ensureErr: instance.ErrAlreadyRunning}
	require.ErrorIs(t, guardInstance(t.Context(), guard, false), instance.ErrAlreadyRunning)

	guard = &fakeGuard{terminated: 2, ensureErr: errors.New("unused")}
	require.NoError(t, guardInstance(t.Context(), guard, true))
	require.Equal(t, []string{"terminate"}, guard.calls)
}

func TestCookieTTL(t *testing.T) {
	t.Parallel()

	require.Equal(t, 48*time.Hour, cookieTTL(2))
	require.Equal(t, time.Duration(config.DefaultCookieExpDays)*24*time.Hour, cookieTTL(0))
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{GRPCAddress: "a:1", WebAddress: "b:2"}
	applyOverrides(cfg, &Options{WebAddress: "c:3"})

	require.Equal(t, "a:1", cfg.GRPCAddress)
	require.Equal(t, "c:3", cfg.WebAddress)
}

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "deadman.yaml")

	written, err := WriteDefaultConfig(path, false)
	require.NoError(t, err)
	require.NotEmpty(t, written.WebPassword)

	_, err = WriteDefaultConfig(path, false)
	require.ErrorIs(t, err, ErrConfigExists)

	_, err = WriteDefaultConfig(path, true)
	require.NoError(t, err)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultTimerWarning, loaded.TimerWarning)
}

func TestPrintJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.cbor")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	w, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Record(journal.Event{
		Timestamp: at, Kind: journal.KindCheckIn, Phase: "warning", Generation: 1, Source: "terminal",
	}))
	require.NoError(t, w.Record(journal.Event{
		Timestamp: at, Kind: journal.KindDelivery, Generation: 2, JobID: "job-1", JobKind: "final",
		Attempts: 3, Error: "send failed",
	}))
	require.NoError(t, w.Close())

	var out bytes.Buffer
	require.NoError(t, PrintJournal(&out, &JournalOptions{Path: path}))

	text := out.String()
	require.Contains(t, text, "check_in")
	require.Contains(t, text, "terminal")
	require.Contains(t, text, "final job-1")
	require.Contains(t, text, "send failed")

	out.Reset()
	require.NoError(t, PrintJournal(&out, &JournalOptions{
		Path:   path,
		Filter: journal.Filter{Kind: journal.KindDelivery},
	}))
	require.NotContains(t, out.String(), "terminal")
}
