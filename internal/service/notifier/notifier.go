package notifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
)

const (
	// DefaultMaxAttempts caps delivery attempts per job.
	DefaultMaxAttempts = 5
	// DefaultBaseBackoff is the wait after the first failed attempt.
	DefaultBaseBackoff = 2 * time.Second
	// DefaultMaxBackoff caps the wait between attempts.
	DefaultMaxBackoff = time.Minute
	// DefaultQueueSize is the capacity of the job queue.
	DefaultQueueSize = 16
)

// Transport delivers a rendered message. Implementations classify failures
// by wrapping ErrTransport, ErrAuth or ErrAttachment; anything else counts
// as transient.
type Transport interface {
	Send(ctx context.Context, msg *domain.Message) error
}

// MessageRenderer builds the message for a job kind.
type MessageRenderer interface {
	Render(kind domain.JobKind) (*domain.Message, error)
}

// Outcome is the final result of handling one job.
type Outcome struct {
	// Job is the handled job, with its message and attempt count filled in.
	Job *domain.EmailJob
	// Err is nil when the message was delivered.
	Err error
	// At is the clock reading when handling finished.
	At time.Time
}

// Delivered reports whether the message reached the transport.
func (o Outcome) Delivered() bool {
	return o.Err == nil
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithMaxAttempts sets the delivery attempt cap.
func WithMaxAttempts(attempts int) Option {
	return func(n *Notifier) {
		if attempts > 0 {
			n.maxAttempts = attempts
		}
	}
}

// WithBackoff sets the first wait and its cap.
func WithBackoff(base, maximum time.Duration) Option {
	return func(n *Notifier) {
		if base > 0 {
			n.baseBackoff = base
		}

		if maximum > 0 {
			n.maxBackoff = maximum
		}
	}
}

// WithClock replaces the real clock used for backoff waits.
func WithClock(clock clockwork.Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithObserver registers a callback for every job outcome.
func WithObserver(observer func(Outcome)) Option {
	return func(n *Notifier) {
		n.observer = observer
	}
}

// WithQueueSize sets the job queue capacity.
func WithQueueSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queueSize = size
		}
	}
}

// markerKey identifies one escalation.
type markerKey struct {
	kind       domain.JobKind
	generation uint64
}

// Notifier delivers escalation jobs. It implements the engine dispatcher.
type Notifier struct {
	transport   Transport
	renderer    MessageRenderer
	clock       clockwork.Clock
	observer    func(Outcome)
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	queueSize   int

	queue chan *domain.EmailJob

	// mu guards dispatched.
	mu         sync.Mutex
	dispatched map[markerKey]string
}

// New creates a notifier. Run must be started for dispatched jobs to be sent.
func New(transport Transport, renderer MessageRenderer, opts ...Option) *Notifier {
	n := &Notifier{
		transport:   transport,
		renderer:    renderer,
		clock:       clockwork.NewRealClock(),
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
		queueSize:   DefaultQueueSize,
		dispatched:  make(map[markerKey]string),
	}

	for _, opt := range opts {
		opt(n)
	}

	n.queue = make(chan *domain.EmailJob, n.queueSize)

	return n
}

// Dispatch hands job to the worker without waiting for delivery.
func (n *Notifier) Dispatch(ctx context.Context, job *domain.EmailJob) {
	select {
	case n.queue <- job:
		return
	default:
	}

	logger.WarnKV(ctx, "Notification queue is full, enqueueing in background",
		"job_id", job.ID,
		"job_kind", job.Kind.String())

	go func() {
		select {
		case n.queue <- job:
		case <-ctx.Done():
			logger.ErrorKV(ctx, "Job dropped on shutdown", "job_id", job.ID, "job_kind", job.Kind.String())
		}
	}()
}

// Run sends queued jobs one by one until ctx is canceled.
func (n *Notifier) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "notifier")

	for {
		select {
		case <-ctx.Done():
			logger.InfoKV(ctx, "Notifier stopped", "pending_jobs", len(n.queue))

			return nil
		case job := <-n.queue:
			// Failures are logged and reported inside Send.
			_ = n.Send(ctx, job)
		}
	}
}

// Send renders and delivers job, retrying transient failures. A job whose
// kind and generation were already handled is refused with ErrAlreadyDispatched.
func (n *Notifier) Send(ctx context.Context, job *domain.EmailJob) error {
	ctx = logger.WithKV(ctx, "job_id", job.ID, "job_kind", job.Kind.String(), "generation", job.Generation)

	if !n.mark(job) {
		logger.Warn(ctx, "Job already dispatched, skipping")

		return ErrAlreadyDispatched
	}

	err := n.deliver(ctx, job)

	n.report(ctx, job, err)

	return err
}

// mark sets the dispatched marker and reports whether it was unset.
func (n *Notifier) mark(job *domain.EmailJob) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := markerKey{kind: job.Kind, generation: job.Generation}
	if _, ok := n.dispatched[key]; ok {
		return false
	}

	n.dispatched[key] = job.ID

	return true
}

// deliver runs the attempt loop.
func (n *Notifier) deliver(ctx context.Context, job *domain.EmailJob) error {
	msg, err := n.renderer.Render(job.Kind)
	if err != nil {
		return err
	}

	job.Message = msg

	if err = checkAttachments(msg.Attachments); err != nil {
		return err
	}

	var lastErr error

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		job.Attempts = attempt

		lastErr = n.transport.Send(ctx, msg)
		if lastErr == nil {
			return nil
		}

		if isFatal(lastErr) {
			return lastErr
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("send %s message: %w", job.Kind, ctxErr)
		}

		if attempt == n.maxAttempts {
			break
		}

		wait := n.backoff(attempt)

		logger.WarnKV(ctx, "Delivery attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", n.maxAttempts,
			"retry_in", wait.String(),
			"error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("send %s message: %w", job.Kind, ctx.Err())
		case <-n.clock.After(wait):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrSendFailed, job.Attempts, lastErr)
}

// backoff returns base*2^(attempt-1), capped at the maximum.
func (n *Notifier) backoff(attempt int) time.Duration {
	wait := n.baseBackoff

	for range attempt - 1 {
		wait *= 2
		if wait >= n.maxBackoff {
			return n.maxBackoff
		}
	}

	return min(wait, n.maxBackoff)
}

// report logs the outcome and forwards it to the observer.
func (n *Notifier) report(ctx context.Context, job *domain.EmailJob, err error) {
	switch {
	case err == nil:
		logger.InfoKV(ctx, "Message delivered", "attempts", job.Attempts)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.WarnKV(ctx, "Delivery interrupted", "attempts", job.Attempts, "error", err)
	default:
		logger.ErrorKV(ctx, "Message delivery failed", "attempts", job.Attempts, "error", err)
	}

	if n.observer != nil {
		n.observer(Outcome{
			Job: job.Clone(),
			Err: err,
			At:  n.clock.Now(),
		})
	}
}

// checkAttachments verifies every attachment can be opened.
func checkAttachments(paths []string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrAttachment, path, err)
		}

		_ = f.Close()
	}

	return nil
}
