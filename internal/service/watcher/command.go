package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
	"github.com/oshokin/dead-man-switch/internal/service/client"
	"github.com/oshokin/dead-man-switch/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between status checks.
	PollInterval time.Duration
	// Timeout specifies the per-RPC timeout duration.
	Timeout time.Duration
	// Once prints the current status and exits.
	Once bool
}

// DefaultPollInterval defines the default polling interval for status checks.
const DefaultPollInterval = 5 * time.Second

// errTriggered indicates that the watched switch has fired.
var errTriggered = errors.New("switch triggered")

// statusClient is the part of common.Client used by the watcher.
type statusClient interface {
	GetStatus(ctx context.Context) (domain.Status, error)
}

// Run polls the switch status until the context is canceled or the switch triggers.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "deadman-status")

	serverAddress, err := client.ResolveAddress(opts.ConfigPath, opts.ServerAddress)
	if err != nil {
		return err
	}

	conn, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(opts.Timeout))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	if opts.Once {
		st, err := conn.GetStatus(ctx)
		if err != nil {
			return err
		}

		logger.Infof(ctx, "Switch status: %s", client.FormatStatus(st))

		return nil
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	logger.InfoKV(ctx, "Polling switch status", "server_address", serverAddress, "interval", opts.PollInterval.String())

	return poll(ctx, conn, opts.PollInterval)
}

// poll checks the status on every tick.
func poll(ctx context.Context, conn statusClient, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w := new(watch)

	for {
		if err := w.check(ctx, conn); err != nil {
			if errors.Is(err, errTriggered) {
				logger.Warn(ctx, "Switch triggered, exiting")

				return nil
			}

			logger.ErrorKV(ctx, "Check status failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
		}
	}
}

// watch remembers the last seen phase and generation.
type watch struct {
	seen       bool
	phase      domain.Phase
	generation uint64
}

// check retrieves the status and logs what changed since the previous check.
// It returns errTriggered once the switch has fired.
func (w *watch) check(ctx context.Context, conn statusClient) error {
	st, err := conn.GetStatus(ctx)
	if err != nil {
		return err
	}

	switch {
	case !w.seen:
		logger.Infof(ctx, "Switch status: %s", client.FormatStatus(st))
	case st.Phase != w.phase:
		logger.WarnKV(ctx, "Switch phase changed",
			"from_phase", w.phase.String(),
			"to_phase", st.Phase.String(),
			"remaining", st.Label)
	case st.Generation != w.generation:
		logger.InfoKV(ctx, "Switch checked in", "generation", st.Generation, "remaining", st.Label)
	default:
		logger.DebugKV(ctx, "Switch status unchanged", "phase", st.Phase.String(), "remaining", st.Label)
	}

	w.seen = true
	w.phase = st.Phase
	w.generation = st.Generation

	if st.Phase.IsTerminal() {
		return errTriggered
	}

	return nil
}
