package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
)

// DefaultMailboxSize is the mailbox capacity used when none is configured.
const DefaultMailboxSize = 64

var (
	// ErrStopped is returned when the arbiter shut down before serving a request.
	ErrStopped = errors.New("check-in arbiter stopped")
	// ErrEmptySource is returned for a check-in without a source.
	ErrEmptySource = errors.New("check-in source is empty")
)

// CheckInner is the part of the engine the arbiter drives.
type CheckInner interface {
	CheckIn(ctx context.Context, source string) (domain.Status, error)
	Status() domain.Status
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithMailboxSize sets the mailbox capacity.
func WithMailboxSize(size int) Option {
	return func(a *Arbiter) {
		if size > 0 {
			a.mailboxSize = size
		}
	}
}

// envelope carries one request and its reply slot.
type envelope struct {
	request domain.CheckInRequest
	reply   chan fn.Result[domain.Status]
}

// Arbiter is the single owner of check-in mutations.
type Arbiter struct {
	engine      CheckInner
	mailboxSize int
	mailbox     chan envelope

	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates an arbiter for engine. Run must be started for check-ins to be served.
func New(engine CheckInner, opts ...Option) *Arbiter {
	a := &Arbiter{
		engine:      engine,
		mailboxSize: DefaultMailboxSize,
		stopped:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.mailbox = make(chan envelope, a.mailboxSize)

	return a
}

// Run serves the mailbox until ctx is canceled. Requests still queued at
// shutdown are answered with ErrStopped.
func (a *Arbiter) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "arbiter")

	logger.Info(ctx, "Check-in arbiter started")

	for {
		select {
		case <-ctx.Done():
			a.stop(ctx)

			return nil
		case first := <-a.mailbox:
			a.serve(ctx, a.drain(first))
		}
	}
}

// CheckIn submits a check-in and waits for the engine result. Once the switch
// is triggered the request is rejected without being queued.
func (a *Arbiter) CheckIn(ctx context.Context, request domain.CheckInRequest) (domain.Status, error) {
	if strings.TrimSpace(request.Source) == "" {
		return a.engine.Status(), ErrEmptySource
	}

	if status := a.engine.Status(); status.Phase.IsTerminal() {
		return status, domain.ErrAlreadyTriggered
	}

	env := envelope{
		request: request,
		reply:   make(chan fn.Result[domain.Status], 1),
	}

	select {
	case a.mailbox <- env:
	case <-a.stopped:
		return a.engine.Status(), ErrStopped
	case <-ctx.Done():
		return a.engine.Status(), fmt.Errorf("enqueue check-in: %w", ctx.Err())
	}

	select {
	case result := <-env.reply:
		return a.unpack(result)
	case <-a.stopped:
		// Run may have answered just before stopping.
		select {
		case result := <-env.reply:
			return a.unpack(result)
		default:
			return a.engine.Status(), ErrStopped
		}
	case <-ctx.Done():
		return a.engine.Status(), fmt.Errorf("await check-in: %w", ctx.Err())
	}
}

// Status returns the current engine status.
func (a *Arbiter) Status() domain.Status {
	return a.engine.Status()
}

// drain collects every request already waiting behind first.
func (a *Arbiter) drain(first envelope) []envelope {
	batch := []envelope{first}

	for {
		select {
		case env := <-a.mailbox:
			batch = append(batch, env)
		default:
			return batch
		}
	}
}

// serve performs one engine check-in for the whole batch. The latest source wins.
func (a *Arbiter) serve(ctx context.Context, batch []envelope) {
	latest := batch[len(batch)-1].request

	var result fn.Result[domain.Status]

	status, err := a.engine.CheckIn(ctx, latest.Source)
	if err != nil {
		result = fn.Err[domain.Status](err)
	} else {
		result = fn.Ok(status)
	}

	if len(batch) > 1 {
		logger.DebugKV(ctx, "Coalesced check-ins", "requests", len(batch), "source", latest.Source)
	}

	for _, env := range batch {
		env.reply <- result
	}
}

// stop marks the arbiter stopped and answers queued requests.
func (a *Arbiter) stop(ctx context.Context) {
	a.stopOnce.Do(func() { close(a.stopped) })

	pending := 0

	for {
		select {
		case env := <-a.mailbox:
			env.reply <- fn.Err[domain.Status](ErrStopped)
			pending++
		default:
			logger.InfoKV(ctx, "Check-in arbiter stopped", "rejected_requests", pending)

			return
		}
	}
}

// unpack converts a reply into the CheckIn return values.
func (a *Arbiter) unpack(result fn.Result[domain.Status]) (domain.Status, error) {
	status, err := result.Unpack()
	if err != nil {
		return a.engine.Status(), err
	}

	return status, nil
}
