// File: internal/supervisor/supervisor.go

// Package supervisor owns the lifecycle of the target application process.
// The process is acquired at run start and released on every exit path; Stop
// is idempotent and never fails.
package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/reflow/internal/config"
)

// ErrLaunch indicates the target executable could not be spawned. Fatal; the
// run aborts after teardown.
var ErrLaunch = errors.New("supervisor: failed to launch target process")

// State is the lifecycle state of the supervised process.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Process is a supervised target application instance.
type Process struct {
	cmd    *exec.Cmd
	logger *zap.Logger

	state atomic.Int32
	done  chan struct{}

	stopOnce sync.Once
	waitErr  error
}

// Start spawns the target application with its remote-debugging flag and
// begins supervising it. The child's stdout and stderr are drained into
// debug-level logs so output from the application cannot block it.
func Start(cfg config.TargetConfig, logger *zap.Logger) (*Process, error) {
	log := logger.Named("supervisor")

	args := append([]string{}, cfg.Args...)
	args = append(args, fmt.Sprintf("--remote-debugging-port=%d", cfg.DebugPort))

	cmd := exec.Command(cfg.Command, args...)
	cmd.Dir = cfg.WorkingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrLaunch, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrLaunch, err)
	}

	p := &Process{
		cmd:    cmd,
		logger: log,
		done:   make(chan struct{}),
	}
	p.state.Store(int32(StateStarting))

	if err := cmd.Start(); err != nil {
		p.state.Store(int32(StateTerminated))
		close(p.done)
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	p.state.Store(int32(StateRunning))
	log.Info("Target process launched.",
		zap.String("command", cfg.Command),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("debug_port", cfg.DebugPort))

	go p.drain("stdout", stdout)
	go p.drain("stderr", stderr)

	go func() {
		p.waitErr = cmd.Wait()
		p.state.Store(int32(StateTerminated))
		close(p.done)
		log.Debug("Target process exited.", zap.Error(p.waitErr))
	}()

	return p, nil
}

// drain forwards one child output stream into the log.
func (p *Process) drain(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	// Electron apps can emit very long single lines (devtools banners).
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.logger.Debug("target output", zap.String("stream", stream), zap.String("line", scanner.Text()))
	}
}

// Pid returns the OS process id, or 0 if the process never started.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// Done is closed once the process has exited, however that happened.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stop requests graceful termination and escalates to a kill once the grace
// period elapses. It is idempotent, never returns an error, and is safe to
// invoke from a deferred cleanup path after the process already exited.
func (p *Process) Stop(grace time.Duration) {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			// Already gone; nothing to release.
			p.logger.Debug("Stop on terminated process is a no-op.")
			return
		default:
		}

		p.state.Store(int32(StateTerminating))
		p.logger.Info("Stopping target process.", zap.Int("pid", p.Pid()), zap.Duration("grace", grace))

		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			p.logger.Debug("Graceful signal failed; killing.", zap.Error(err))
			_ = p.cmd.Process.Kill()
		}

		select {
		case <-p.done:
			p.logger.Info("Target process terminated gracefully.")
		case <-time.After(grace):
			p.logger.Warn("Grace period elapsed; killing target process.")
			_ = p.cmd.Process.Kill()
			<-p.done
		}
	})
}
