package switcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/dead-man-switch/internal/config"
	"github.com/oshokin/dead-man-switch/internal/instance"
	"github.com/oshokin/dead-man-switch/internal/logger"
	"github.com/oshokin/dead-man-switch/internal/service/notifier"
	"github.com/oshokin/dead-man-switch/internal/version"
)

// Options controls the deadman-switch process.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// GRPCAddress overrides the configured gRPC listen address.
	GRPCAddress string
	// WebAddress overrides the configured web listen address.
	WebAddress string
	// Interactive enables the terminal front-end.
	Interactive bool
	// Replace terminates a running instance instead of refusing to start.
	Replace bool
	// SkipSMTPCheck disables the startup SMTP connection check.
	SkipSMTPCheck bool
	// Transport replaces the SMTP transport (used by tests).
	Transport notifier.Transport
}

// ErrConfigExists is returned by WriteDefaultConfig when the file is already there.
var ErrConfigExists = errors.New("configuration file already exists")

// processGuard is the part of instance.Guard used on startup.
type processGuard interface {
	Name() string
	Ensure() error
	TerminateOthers() (int, error)
}

// Run loads the configuration, checks for a running instance and serves the
// switch until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "deadman-switch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(cfg, opts)

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, using info", "log_level", cfg.LogLevel)
	}

	logger.SetLevel(level)

	if err = guardInstance(ctx, instance.New(""), opts.Replace); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Starting dead man's switch", "version", version.Short(), "config", opts.ConfigPath)

	s, err := New(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("initialise switch: %w", err)
	}

	return s.Run(ctx)
}

// WriteDefaultConfig writes a fresh configuration to path.
// An existing file is only overwritten when force is set.
func WriteDefaultConfig(path string, force bool) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigFilename
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	cfg := config.Default()
	if err := config.Save(path, cfg); err != nil {
		return nil, fmt.Errorf("save default settings: %w", err)
	}

	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.GRPCAddress != "" {
		cfg.GRPCAddress = opts.GRPCAddress
	}

	if opts.WebAddress != "" {
		cfg.WebAddress = opts.WebAddress
	}
}

// guardInstance refuses to run next to another switch, or kills it when replace is set.
func guardInstance(ctx context.Context, guard processGuard, replace bool) error {
	if !replace {
		if err := guard.Ensure(); err != nil {
			return fmt.Errorf("check running instances: %w", err)
		}

		return nil
	}

	terminated, err := guard.TerminateOthers()
	if err != nil {
		return fmt.Errorf("terminate running instances: %w", err)
	}

	if terminated > 0 {
		logger.WarnKV(ctx, "Terminated running instances", "executable", guard.Name(), "count", terminated)
	}

	return nil
}

// cookieTTL converts the configured session lifetime in days.
func cookieTTL(days int) time.Duration {
	if days <= 0 {
		days = config.DefaultCookieExpDays
	}

	const day = 24 * time.Hour

	return time.Duration(days) * day
}
