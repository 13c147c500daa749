package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/dead-man-switch/internal/config"
	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
	"github.com/oshokin/dead-man-switch/internal/service/common"
)

// Options configures the remote check-in.
type Options struct {
	// ConfigPath to the settings file; only read when ServerAddress is empty.
	ConfigPath string

	// ServerAddress overrides the gRPC address from the config when specified.
	ServerAddress string

	// Source overrides the detected "checkin:user@host" source.
	Source string

	// Timeout is the per-RPC timeout.
	Timeout time.Duration

	// RetryInterval is the delay between attempts after a transient failure.
	RetryInterval time.Duration

	// Once disables retries.
	Once bool
}

// DefaultRetryInterval defines the delay between check-in attempts.
const DefaultRetryInterval = 1 * time.Second

// checkInClient is the part of common.Client used by the command.
type checkInClient interface {
	CheckIn(ctx context.Context, source string) (domain.Status, error)
}

// Run checks in with retry logic until success or cancellation.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "deadman-checkin")

	serverAddress, err := ResolveAddress(opts.ConfigPath, opts.ServerAddress)
	if err != nil {
		return err
	}

	source := opts.Source
	if source == "" {
		if source, err = common.DetectSource("checkin"); err != nil {
			return err
		}
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(opts.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Checking in", "server_address", serverAddress, "source", source)

	st, err := checkIn(ctx, client, source, opts)
	if err != nil {
		return err
	}

	logger.Infof(ctx, "Checked in: %s", FormatStatus(st))

	return nil
}

// checkIn retries transient failures every RetryInterval.
func checkIn(ctx context.Context, client checkInClient, source string, opts *Options) (domain.Status, error) {
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	// attempt tries once, returns (status, completed, error).
	attempt := func() (domain.Status, bool, error) {
		st, err := client.CheckIn(ctx, source)
		if err == nil {
			return st, true, nil
		}

		if status.Code(err) == codes.FailedPrecondition {
			return domain.Status{}, true, fmt.Errorf("%w: %w", ErrTriggered, err)
		}

		if !isRetryable(err) || opts.Once {
			return domain.Status{}, true, err
		}

		logger.ErrorKV(ctx, "Check-in failed, retrying", "error", err, "retry_in", interval.String())

		return domain.Status{}, false, nil
	}

	if st, done, err := attempt(); done {
		return st, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.Status{}, ctx.Err()
		case <-ticker.C:
			if st, done, err := attempt(); done {
				return st, err
			}
		}
	}
}

// ErrTriggered is returned when the remote switch already fired.
var ErrTriggered = errors.New("switch already triggered, check-in refused")

// isRetryable reports whether a failed check-in may succeed later.
func isRetryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// ResolveAddress returns override when set, otherwise the gRPC address from the config file.
func ResolveAddress(configPath, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	if cfg.GRPCAddress == "" {
		return "", fmt.Errorf("%w: grpc_address is empty", config.ErrConfig)
	}

	return cfg.GRPCAddress, nil
}

// FormatStatus converts a status into a readable log message.
func FormatStatus(st domain.Status) string {
	lastCheckIn := "never"
	if !st.LastCheckIn.IsZero() {
		lastCheckIn = st.LastCheckIn.Local().Format(time.RFC3339)
	}

	if st.Phase.IsTerminal() {
		return fmt.Sprintf("%s (last check-in %s)", st.Phase, lastCheckIn)
	}

	return fmt.Sprintf("%s, %s left (%d%%), last check-in %s", st.Phase, st.Label, st.RemainingPercent, lastCheckIn)
}
