package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
)

// sourceTerminal identifies check-ins made from the console.
const sourceTerminal = "terminal"

// promptRefreshInterval is how often the prompt countdown is redrawn.
const promptRefreshInterval = time.Second

// Service abstracts the check-in entry point the console depends on.
type Service interface {
	CheckIn(ctx context.Context, request domain.CheckInRequest) (domain.Status, error)
	Status() domain.Status
}

// Console is the readline-driven front-end.
type Console struct {
	service Service
	rl      *readline.Instance
	out     io.Writer
}

// New creates a console bound to the process terminal.
func New(service Service) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(service.Status()),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline: %w", err)
	}

	return &Console{
		service: service,
		rl:      rl,
		out:     rl.Stdout(),
	}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until quit, EOF or ctx cancellation. Quitting calls
// cancel so the rest of the process shuts down too.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	ctx = logger.WithName(ctx, "terminal")

	defer c.rl.Close()

	go c.refreshPrompt(ctx)

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && ctx.Err() == nil {
				continue
			}

			if ctx.Err() == nil {
				fmt.Fprintln(c.out, "Exiting...")
				cancel()
			}

			return nil
		}

		if quit := c.execute(ctx, line); quit {
			cancel()

			return nil
		}
	}
}

// refreshPrompt redraws the countdown and closes readline on shutdown.
func (c *Console) refreshPrompt(ctx context.Context) {
	ticker := time.NewTicker(promptRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Unblocks Readline.
			_ = c.rl.Close()

			return
		case <-ticker.C:
			c.rl.SetPrompt(prompt(c.service.Status()))
			c.rl.Refresh()
		}
	}
}

// execute runs one command line and reports whether the console should quit.
func (c *Console) execute(ctx context.Context, line string) bool {
	input := strings.ToLower(strings.TrimSpace(line))
	if input == "" {
		return false
	}

	switch strings.Fields(input)[0] {
	case "c", "check", "checkin", "check-in":
		c.checkIn(ctx)
	case "s", "status":
		c.printStatus(c.service.Status())
	case "h", "help", "?":
		c.printHelp()
	case "q", "quit", "exit":
		fmt.Fprintln(c.out, "Exiting...")

		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'h' for help)\n", input)
	}

	return false
}

func (c *Console) checkIn(ctx context.Context) {
	st, err := c.service.CheckIn(ctx, domain.CheckInRequest{
		Source:    sourceTerminal,
		Timestamp: time.Now(),
	})

	switch {
	case err == nil:
		fmt.Fprintf(c.out, "Checked in. %s remaining.\n", st.Label)
	case errors.Is(err, domain.ErrAlreadyTriggered):
		fmt.Fprintln(c.out, "The switch has already triggered. Check-ins are no longer accepted.")
	default:
		fmt.Fprintf(c.out, "Check-in failed: %v\n", err)
	}

	if c.rl != nil {
		c.rl.SetPrompt(prompt(st))
	}
}

func (c *Console) printStatus(st domain.Status) {
	lastCheckIn := "never"
	if !st.LastCheckIn.IsZero() {
		lastCheckIn = st.LastCheckIn.Local().Format(time.RFC1123)
	}

	fmt.Fprintf(c.out, "Timer:         %s\n", st.Phase)
	fmt.Fprintf(c.out, "Time left:     %s (%d%%)\n", st.Label, st.RemainingPercent)
	fmt.Fprintf(c.out, "Last check-in: %s\n", lastCheckIn)
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `
Dead Man's Switch Commands:
  c, check    - Check in and restart the warning countdown
  s, status   - Show the current timer
  h, ?        - Show this help
  q, quit     - Stop the switch
`)
}

// prompt renders the status as the input prompt.
func prompt(st domain.Status) string {
	if st.Phase.IsTerminal() {
		return "[Triggered] > "
	}

	return fmt.Sprintf("[%s %s] > ", st.Phase, st.Label)
}
