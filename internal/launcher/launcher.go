// Package launcher starts the members of a multi-process run and supervises
// them until they all exit.
//
// Every member is a copy of the same executable, told its rank through the
// environment. The first member to fail brings the rest down, and the run's
// Redis keys are removed once nothing is left running.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/halo/internal/config"
	"github.com/dyluth/halo/internal/logger"
)

// DefaultStopGrace is how long a member gets to exit after being interrupted
// before it is killed.
const DefaultStopGrace = 5 * time.Second

// Broker is the shared server the members talk through.
type Broker interface {
	Ping(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// MemberState tracks one member process.
type MemberState struct {
	Rank      int
	PID       int
	StartedAt time.Time
	Status    string // "running", "exited", "failed"
	ExitCode  int
}

// MemberError reports a member that did not exit cleanly.
type MemberError struct {
	Rank     int
	ExitCode int
	Err      error
}

func (e *MemberError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("member %d exited with code %d", e.Rank, e.ExitCode)
	}
	return fmt.Sprintf("member %d failed: %v", e.Rank, e.Err)
}

func (e *MemberError) Unwrap() error { return e.Err }

// Launcher runs one group of member processes.
type Launcher struct {
	executable string
	args       []string
	config     *config.LaunchConfig
	broker     Broker
	runID      string
	logger     logger.Logger
	stdout     io.Writer
	stderr     io.Writer
	stopGrace  time.Duration

	members []*MemberState
	mu      sync.Mutex
}

// Option customises a Launcher.
type Option func(*Launcher)

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(l *Launcher) { l.runID = id }
}

// WithLogger sets the launcher's logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Launcher) { l.logger = log }
}

// WithOutput sets where member stdout and stderr are streamed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(l *Launcher) { l.stdout, l.stderr = stdout, stderr }
}

// WithStopGrace overrides DefaultStopGrace.
func WithStopGrace(d time.Duration) Option {
	return func(l *Launcher) { l.stopGrace = d }
}

// New creates a Launcher that runs executable with args once per member.
// cfg must already be validated. broker may be nil when the caller manages
// the Redis server itself.
func New(executable string, args []string, cfg *config.LaunchConfig, broker Broker, opts ...Option) *Launcher {
	l := &Launcher{
		executable: executable,
		args:       args,
		config:     cfg,
		broker:     broker,
		runID:      uuid.NewString(),
		logger:     logger.NewNoopLogger(),
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		stopGrace:  DefaultStopGrace,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("run_id", l.runID))
	return l
}

// RunID returns the id shared by every member of this run.
func (l *Launcher) RunID() string {
	return l.runID
}

// Members returns a snapshot of every member's state.
func (l *Launcher) Members() []MemberState {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MemberState, len(l.members))
	for i, m := range l.members {
		out[i] = *m
	}
	return out
}

// Run starts every member and waits for all of them. The first member that
// fails cancels the others and its error is returned.
func (l *Launcher) Run(ctx context.Context) error {
	size := *l.config.Processes

	if l.broker != nil {
		if err := l.broker.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach Redis at %s: %w", l.config.Redis.URL, err)
		}
		defer func() {
			if err := l.broker.Cleanup(context.WithoutCancel(ctx)); err != nil {
				l.logger.Warn("Failed to clean up run keys", zap.Error(err))
			}
		}()
	}

	l.mu.Lock()
	l.members = make([]*MemberState, size)
	for rank := range l.members {
		l.members[rank] = &MemberState{Rank: rank}
	}
	l.mu.Unlock()

	l.logger.Info("Launching members", zap.Int("size", size), zap.String("executable", l.executable))

	// The first MemberError to come back is the cause; members stopped
	// because of it fail too, but later.
	var (
		causeOnce sync.Once
		cause     error
	)

	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		cmd := l.command(gctx, rank, size)
		if err := cmd.Start(); err != nil {
			l.setStatus(rank, "failed", -1)
			startErr := &MemberError{Rank: rank, ExitCode: -1, Err: err}
			causeOnce.Do(func() { cause = startErr })
			// Stop what has already started.
			g.Go(func() error { return startErr })
			break
		}
		l.started(rank, cmd.Process.Pid)

		g.Go(func() error {
			err := l.wait(rank, cmd)
			if err != nil && gctx.Err() == nil {
				causeOnce.Do(func() { cause = err })
			}
			return err
		})
	}

	err := g.Wait()
	if cause != nil {
		l.logger.Error("Run failed", zap.Error(cause))
		return cause
	}
	if err != nil {
		return err
	}
	l.logger.Info("All members exited cleanly")
	return nil
}

func (l *Launcher) command(ctx context.Context, rank, size int) *exec.Cmd {
	cmd := exec.CommandContext(ctx, l.executable, l.args...)
	cmd.Env = append(os.Environ(), l.config.MemberEnv(l.runID, rank, size)...)
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = l.stopGrace
	return cmd
}

func (l *Launcher) wait(rank int, cmd *exec.Cmd) error {
	err := cmd.Wait()
	if err == nil {
		l.setStatus(rank, "exited", 0)
		l.logger.Debug("Member exited", zap.Int("rank", rank))
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	l.setStatus(rank, "failed", exitCode)
	l.logger.Warn("Member failed", zap.Int("rank", rank), zap.Int("exit_code", exitCode), zap.Error(err))
	return &MemberError{Rank: rank, ExitCode: exitCode, Err: err}
}

func (l *Launcher) started(rank, pid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.members[rank]
	m.PID = pid
	m.StartedAt = time.Now()
	m.Status = "running"
}

func (l *Launcher) setStatus(rank int, status string, exitCode int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.members[rank].Status = status
	l.members[rank].ExitCode = exitCode
}
