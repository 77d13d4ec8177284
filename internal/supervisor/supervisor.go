// Package supervisor owns the lifecycle of the single warper worker process.
//
// The supervisor spawns exactly one worker, blocks until it exits, and
// forwards a termination request received from its environment to the worker
// before exiting itself. It never restarts the worker and it imposes no
// timeout on worker shutdown: once the stop signal has been forwarded, the
// supervisor waits unconditionally for the worker to exit and then reports
// the worker's exit status as its own outcome.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/satproc/warpinit/internal/metrics"
)

// State identifies the supervisor's position in its lifecycle.
type State string

const (
	StateInit        State = "init"
	StateRunning     State = "running"
	StateTerminating State = "terminating"
	StateExited      State = "exited"
)

// Fixed notices emitted while a termination request is handled.
const (
	noticeForwarding = "termination signal received, forwarding to worker"
	noticeWaiting    = "waiting for worker to exit"
)

// Config controls construction of a Supervisor.
type Config struct {
	// Command is the worker argv. The executable is resolved against the
	// PATH carried in Env, not against the supervisor's own environment.
	Command []string

	// Env is the complete environment passed to the worker. A nil slice
	// lets the worker inherit the supervisor's environment unchanged.
	Env []string

	Workdir string

	// StopSignal is forwarded to the worker on a termination request.
	// Defaults to SIGTERM.
	StopSignal syscall.Signal

	// Events receives lifecycle notifications when non-nil.
	Events chan<- Event

	// Stdout and Stderr receive the worker's output unmodified. They
	// default to the supervisor's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Supervisor manages exactly one worker process per invocation.
type Supervisor struct {
	cfg Config

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	startedAt time.Time
	exitCode  int
	exited    bool

	forwardOnce sync.Once
}

// Status is a point-in-time snapshot of the supervised worker.
type Status struct {
	State     State      `json:"state"`
	PID       int        `json:"pid,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	ExitCode  *int       `json:"exitCode,omitempty"`
}

// New constructs a Supervisor. It does not spawn the worker.
func New(cfg Config) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("supervisor requires a worker command")
	}
	if cfg.StopSignal == 0 {
		cfg.StopSignal = syscall.SIGTERM
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Supervisor{cfg: cfg, state: StateInit}, nil
}

// Run spawns the worker and blocks until it exits, returning the worker's
// exit code. Termination requests delivered on termCh (or via context
// cancellation) are forwarded to the worker exactly once; Run keeps waiting
// for the worker afterwards. Run may be called at most once.
func (s *Supervisor) Run(ctx context.Context, termCh <-chan os.Signal) (int, error) {
	s.mu.Lock()
	if s.state != StateInit {
		s.mu.Unlock()
		return 0, errors.New("supervisor already ran")
	}
	s.mu.Unlock()

	executable, err := resolveExecutable(s.cfg.Command[0], s.cfg.Env)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(executable, s.cfg.Command[1:]...)
	if s.cfg.Env != nil {
		cmd.Env = s.cfg.Env
	}
	if s.cfg.Workdir != "" {
		cmd.Dir = s.cfg.Workdir
	}
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr
	configureCmdSysProcAttr(cmd)

	s.emit(Event{Type: EventTypeStarting, Message: "starting worker"})
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start worker: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()
	metrics.SetWorkerState(string(StateRunning))
	s.emit(Event{Type: EventTypeStarted, PID: cmd.Process.Pid, Message: "worker started"})

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	// Termination requests are consumed only once the worker handle above
	// exists, so a signal delivered during startup queues in termCh and is
	// forwarded here rather than being lost.
	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			s.forward(s.cfg.StopSignal)
		case sig, ok := <-termCh:
			if !ok {
				termCh = nil
				continue
			}
			s.forward(s.stopSignalFor(sig))
		case err := <-waitErr:
			code := exitCodeFromError(err)
			s.mu.Lock()
			s.state = StateExited
			s.exited = true
			s.exitCode = code
			s.mu.Unlock()
			metrics.SetWorkerState(string(StateExited))
			metrics.SetWorkerExitCode(code)
			s.emit(Event{Type: EventTypeExited, PID: cmd.Process.Pid, ExitCode: code,
				Message: fmt.Sprintf("worker exited with code %d", code)})
			return code, nil
		}
	}
}

// forward delivers the stop signal to the worker at most once per worker
// lifetime. A request arriving after the worker has exited is a no-op.
func (s *Supervisor) forward(sig syscall.Signal) {
	s.forwardOnce.Do(func() {
		s.mu.Lock()
		if s.exited {
			s.mu.Unlock()
			return
		}
		s.state = StateTerminating
		cmd := s.cmd
		s.mu.Unlock()

		metrics.SetWorkerState(string(StateTerminating))
		s.emit(Event{Type: EventTypeSignalled, Message: noticeForwarding})
		if err := signalWorker(cmd, sig); err != nil {
			s.emit(Event{Type: EventTypeSignalled, Message: "forward failed", Err: err})
		} else {
			metrics.IncSignalsForwarded()
		}
		s.emit(Event{Type: EventTypeWaiting, Message: noticeWaiting})
	})
}

// Status reports the current lifecycle snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state}
	if s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		st.StartedAt = &started
	}
	if s.exited {
		code := s.exitCode
		st.ExitCode = &code
	}
	return st
}

// PID returns the worker's process id while the worker is live, zero
// otherwise.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited || s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Supervisor) stopSignalFor(sig os.Signal) syscall.Signal {
	if converted, ok := sig.(syscall.Signal); ok {
		return converted
	}
	return s.cfg.StopSignal
}

func (s *Supervisor) emit(evt Event) {
	if s.cfg.Events == nil {
		return
	}
	evt.Timestamp = time.Now()
	s.cfg.Events <- evt
}

// resolveExecutable locates the worker executable against the PATH carried
// in the worker's environment, so that activation directories prepended to
// that PATH take effect without mutating the supervisor's environment.
func resolveExecutable(name string, env []string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}
	pathEnv := lookupPath(env)
	if pathEnv == "" {
		resolved, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("resolve worker executable: %w", err)
		}
		return resolved, nil
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 == 0 {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("worker executable %q not found in worker PATH", name)
}

func lookupPath(env []string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], "PATH=") {
			return env[i][len("PATH="):]
		}
	}
	return ""
}
