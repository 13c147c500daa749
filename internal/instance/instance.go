package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process with the same executable name exists.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Guard inspects the process table on behalf of one executable name.
type Guard struct {
	name      string
	selfPID   int
	processes func() ([]ps.Process, error)
}

// New creates a guard for the executable name. An empty name means the
// current executable.
func New(name string) *Guard {
	if name == "" {
		name = CurrentExecutable()
	}

	return &Guard{
		name:      name,
		selfPID:   os.Getpid(),
		processes: ps.Processes,
	}
}

// CurrentExecutable returns the base name of the running binary.
func CurrentExecutable() string {
	if path, err := os.Executable(); err == nil {
		return filepath.Base(path)
	}

	return filepath.Base(os.Args[0])
}

// Name returns the watched executable name.
func (g *Guard) Name() string {
	return g.name
}

// Others returns the PIDs of other processes running the same executable.
func (g *Guard) Others() ([]int, error) {
	processList, err := g.processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var pids []int

	for _, process := range processList {
		if process.Pid() == g.selfPID {
			continue
		}

		if process.Executable() != g.name {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids, nil
}

// Ensure fails with ErrAlreadyRunning when another instance exists.
func (g *Guard) Ensure() error {
	pids, err := g.Others()
	if err != nil {
		return err
	}

	if len(pids) > 0 {
		return fmt.Errorf("%w: %s (pid %v)", ErrAlreadyRunning, g.name, pids)
	}

	return nil
}

// TerminateOthers kills every other process running the same executable.
func (g *Guard) TerminateOthers() (int, error) {
	pids, err := g.Others()
	if err != nil {
		return 0, err
	}

	for i, pid := range pids {
		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(pid)
		if err != nil {
			return i, fmt.Errorf("find process %d: %w", pid, err)
		}

		if err = runningProcess.Kill(); err != nil {
			return i, fmt.Errorf("kill process %d: %w", pid, err)
		}
	}

	return len(pids), nil
}
