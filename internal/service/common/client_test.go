//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/dead-man-switch/internal/api/grpc/deadman"
	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
)

// stubService counts check-ins until triggered is set.
type stubService struct {
	mu         sync.Mutex
	generation uint64
	sources    []string
	triggered  bool
}

func (s *stubService) CheckIn(_ context.Context, request domain.CheckInRequest) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.triggered {
		return domain.Status{Phase: domain.PhaseTriggered, Generation: s.generation}, domain.ErrAlreadyTriggered
	}

	s.generation++
	s.sources = append(s.sources, request.Source)

	return domain.Status{
		Phase:            domain.PhaseWarning,
		SecondsRemaining: 60,
		RemainingPercent: 100,
		Label:            "1 minute(s)",
		Generation:       s.generation,
		LastCheckIn:      request.Timestamp.Truncate(time.Second),
	}, nil
}

func (s *stubService) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.Status{Phase: domain.PhaseDeadMan, SecondsRemaining: 5, Generation: s.generation}
}

// serve starts an in-process gRPC server on a loopback port.
func serve(t *testing.T, service api.Service) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	api.RegisterSwitchServiceServer(server, api.NewServer(service))

	go func() {
		_ = server.Serve(lis)
	}()

	t.Cleanup(server.Stop)

	return lis.Addr().String()
}

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.ErrorIs(t, err, errAddressRequired)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{}

	ctx, cancel := c.callContext(context.Background())
	_, ok := ctx.Deadline()

	cancel()
	require.False(t, ok)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestCheckIn_EmptySource asserts that an empty source never reaches the wire.
func TestCheckIn_EmptySource(t *testing.T) {
	t.Parallel()

	c := new(Client)

	_, err := c.CheckIn(context.Background(), "")
	require.ErrorIs(t, err, errSourceRequired)
}

// TestClient_Roundtrip checks in and reads the status through a live server.
func TestClient_Roundtrip(t *testing.T) {
	t.Parallel()

	service := &stubService{}
	addr := serve(t, service)

	c, err := Dial(t.Context(), addr, WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	st, err := c.CheckIn(t.Context(), "checkin:tester@host")
	require.NoError(t, err)
	require.Equal(t, domain.PhaseWarning, st.Phase)
	require.Equal(t, uint64(1), st.Generation)
	require.Equal(t, "1 minute(s)", st.Label)
	require.False(t, st.LastCheckIn.IsZero())

	st, err = c.GetStatus(t.Context())
	require.NoError(t, err)
	require.Equal(t, domain.PhaseDeadMan, st.Phase)
	require.Equal(t, int64(5), st.SecondsRemaining)

	service.mu.Lock()
	service.triggered = true
	service.mu.Unlock()

	_, err = c.CheckIn(t.Context(), "checkin:tester@host")
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	require.Equal(t, []string{"checkin:tester@host"}, service.sources)
}
