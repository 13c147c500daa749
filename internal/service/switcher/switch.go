package switcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/dead-man-switch/internal/api/grpc/deadman"
	"github.com/oshokin/dead-man-switch/internal/api/web"
	"github.com/oshokin/dead-man-switch/internal/config"
	"github.com/oshokin/dead-man-switch/internal/journal"
	"github.com/oshokin/dead-man-switch/internal/logger"
	"github.com/oshokin/dead-man-switch/internal/service/arbiter"
	"github.com/oshokin/dead-man-switch/internal/service/engine"
	"github.com/oshokin/dead-man-switch/internal/service/notifier"
	"github.com/oshokin/dead-man-switch/internal/terminal"
	"github.com/oshokin/dead-man-switch/internal/transport/smtp"
)

// Switch is one fully wired switch. Create it with New and start it with Run.
type Switch struct {
	cfg *config.Config

	engine   *engine.Engine
	arbiter  *arbiter.Arbiter
	notifier *notifier.Notifier
	web      *web.Server
	journal  *journal.Writer

	grpcListener net.Listener
	webListener  net.Listener

	interactive bool
}

// New builds every component and opens the listeners.
//
//nolint:funlen // Wiring reads best in one place.
func New(ctx context.Context, cfg *config.Config, opts *Options) (*Switch, error) {
	s := &Switch{
		cfg:         cfg,
		interactive: opts.Interactive,
	}

	transport := opts.Transport
	if transport == nil {
		transport = newSMTPTransport(ctx, cfg, opts.SkipSMTPCheck)
	}

	if cfg.JournalFile != "" {
		w, err := journal.Open(cfg.JournalFile)
		if err != nil {
			return nil, err
		}

		s.journal = w
	}

	s.notifier = notifier.New(transport, notifier.NewRenderer(cfg),
		notifier.WithMaxAttempts(cfg.RetryMaxAttempts),
		notifier.WithBackoff(time.Duration(cfg.RetryBaseBackoff), time.Duration(cfg.RetryMaxBackoff)),
		notifier.WithObserver(s.recordOutcome),
	)

	eng, err := engine.New(engine.Settings{
		WarningDuration: time.Duration(cfg.TimerWarning),
		DeadManDuration: time.Duration(cfg.TimerDeadMan),
	}, s.notifier, engine.WithObserver(s.recordTransition))
	if err != nil {
		return nil, s.closeOnError(fmt.Errorf("create engine: %w", err))
	}

	s.engine = eng
	s.arbiter = arbiter.New(eng)

	if cfg.WebAddress != "" {
		s.web, err = web.New(web.Settings{
			Password:    cfg.WebPassword,
			SessionTTL:  cookieTTL(cfg.CookieExpDays),
			CORSOrigins: cfg.CORSOrigins,
		}, s.arbiter)
		if err != nil {
			return nil, s.closeOnError(fmt.Errorf("create web server: %w", err))
		}

		if s.webListener, err = listen(ctx, cfg.WebAddress); err != nil {
			return nil, s.closeOnError(err)
		}
	}

	if cfg.GRPCAddress != "" {
		if s.grpcListener, err = listen(ctx, cfg.GRPCAddress); err != nil {
			return nil, s.closeOnError(err)
		}
	}

	return s, nil
}

// Run serves every component until ctx is canceled or the operator quits.
func (s *Switch) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "deadman-switch")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		if err := s.closeJournal(); err != nil {
			logger.ErrorKV(ctx, "Failed to close journal", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.engine.Run(gctx) })
	g.Go(func() error { return s.arbiter.Run(gctx) })
	g.Go(func() error { return s.notifier.Run(gctx) })

	g.Go(func() error {
		select {
		case <-s.engine.Done():
			logger.Warn(gctx, "Switch triggered, the final message is on its way")
		case <-gctx.Done():
		}

		return nil
	})

	if s.grpcListener != nil {
		g.Go(func() error { return serveGRPC(gctx, s.grpcListener, s.arbiter) })
	}

	if s.web != nil {
		g.Go(func() error { return s.web.Serve(gctx, s.webListener) })
	}

	if s.interactive {
		console, err := terminal.New(s.arbiter)
		if err != nil {
			cancel()

			return errors.Join(err, g.Wait())
		}

		restore := redirectLogs(console.Stdout())
		defer restore()

		g.Go(func() error { return console.Run(gctx, cancel) })
	}

	logger.InfoKV(ctx, "Dead man's switch armed",
		"warning_timer", s.cfg.TimerWarning.String(),
		"dead_man_timer", s.cfg.TimerDeadMan.String(),
		"grpc_address", listenerAddr(s.grpcListener),
		"web_address", listenerAddr(s.webListener))

	return g.Wait()
}

// GRPCAddr returns the bound gRPC address, or "" when disabled.
func (s *Switch) GRPCAddr() string {
	return listenerAddr(s.grpcListener)
}

// WebAddr returns the bound web address, or "" when disabled.
func (s *Switch) WebAddr() string {
	return listenerAddr(s.webListener)
}

// Arbiter exposes the check-in entry point.
func (s *Switch) Arbiter() *arbiter.Arbiter {
	return s.arbiter
}

// serveGRPC serves the switch API on lis until ctx is canceled.
func serveGRPC(ctx context.Context, lis net.Listener, service api.Service) error {
	grpcServer := grpc.NewServer()
	api.RegisterSwitchServiceServer(grpcServer, api.NewServer(service))

	logger.InfoKV(ctx, "GRPC server listening", "listen_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// newSMTPTransport creates the SMTP transport and checks the relay once.
// An unreachable relay is only a warning: it may come back before any mail is due.
func newSMTPTransport(ctx context.Context, cfg *config.Config, skipCheck bool) *smtp.Transport {
	transport := smtp.New(smtp.Settings{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  time.Duration(cfg.SMTPCheckTimeout),
	})

	if skipCheck {
		return transport
	}

	if err := transport.CheckConnection(ctx); err != nil {
		logger.WarnKV(ctx, "SMTP connection check failed", "smtp_server", cfg.SMTPServer, "error", err)
	} else {
		logger.InfoKV(ctx, "SMTP connection check passed", "smtp_server", cfg.SMTPServer)
	}

	return transport
}

// listen opens a TCP listener.
func listen(ctx context.Context, address string) (net.Listener, error) {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	return lis, nil
}

func listenerAddr(lis net.Listener) string {
	if lis == nil {
		return ""
	}

	return lis.Addr().String()
}

// closeOnError releases whatever New already opened.
func (s *Switch) closeOnError(err error) error {
	errs := []error{err, s.closeJournal()}

	for _, lis := range []net.Listener{s.grpcListener, s.webListener} {
		if lis != nil {
			errs = append(errs, lis.Close())
		}
	}

	return errors.Join(errs...)
}

func (s *Switch) closeJournal() error {
	if s.journal == nil {
		return nil
	}

	return s.journal.Close()
}

// redirectLogs routes log output through w and returns a restore function.
func redirectLogs(w io.Writer) func() {
	previous := logger.SetOutput(w)

	return func() {
		logger.SetOutput(previous)
	}
}
