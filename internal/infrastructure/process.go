package infrastructure

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// ExitStatus describes how a supervised process stopped
type ExitStatus struct {
	Code     int    // exit code, -1 when killed by a signal
	Signal   string // signal name when Signaled
	Signaled bool
}

// Completed reports a clean zero exit with no signal
func (e ExitStatus) Completed() bool {
	return !e.Signaled && e.Code == 0
}

// Process is one running external tool, exclusively owned by its session
// until termination. The owner must call ReadersDone once it has drained
// stdout and stderr; reaping waits for that signal, because Wait closes the
// pipes and would discard any still-buffered telemetry.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	exitCh chan ExitStatus

	drained   chan struct{}
	drainOnce sync.Once

	mu     sync.Mutex
	exited bool
}

// PID returns the OS process id
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Stdout returns the tool's stdout stream
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stderr returns the tool's stderr telemetry stream
func (p *Process) Stderr() io.Reader { return p.stderr }

// Exit delivers the exit status exactly once after the process stops and its
// streams were drained
func (p *Process) Exit() <-chan ExitStatus { return p.exitCh }

// ReadersDone signals that stdout and stderr have been read to EOF, releasing
// the reap. Idempotent.
func (p *Process) ReadersDone() {
	p.drainOnce.Do(func() { close(p.drained) })
}

// Exited reports whether the process has already stopped
func (p *Process) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// WriteControl sends a cooperative request over the tool's stdin control
// channel. Fails once the process has exited or stdin was never opened.
func (p *Process) WriteControl(s string) error {
	if p.stdin == nil {
		return fmt.Errorf("no control channel")
	}
	if p.Exited() {
		return fmt.Errorf("process already exited")
	}
	_, err := io.WriteString(p.stdin, s)
	return err
}

// Signal sends an OS termination signal. No-op after exit.
func (p *Process) Signal(sig syscall.Signal) error {
	if p.Exited() {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

// Kill unconditionally terminates the process. No-op after exit.
func (p *Process) Kill() error {
	if p.Exited() {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *Process) markExited() {
	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()
}

// Supervisor owns every external process handle the host spawns. Host
// shutdown force-terminates all outstanding processes exactly once.
type Supervisor struct {
	logger *zap.Logger

	mu       sync.Mutex
	procs    map[*Process]struct{}
	shutdown bool
}

// NewSupervisor creates a supervisor
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{
		logger: logger,
		procs:  make(map[*Process]struct{}),
	}
}

// Start spawns the tool with the given argument vector. A returned error
// means the process never started (a spawn error); everything after a
// successful return is observed through the exit channel.
func (s *Supervisor) Start(binary string, args []string, env []string) (*Process, error) {
	cmd := exec.Command(binary, args...)
	if env != nil {
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open control channel: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &Process{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		exitCh:  make(chan ExitStatus, 1),
		drained: make(chan struct{}),
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("supervisor shutting down")
	}
	s.procs[p] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("binary", binary))

	go s.wait(p)
	return p, nil
}

// wait reaps the process and publishes its exit status. Wait is deferred
// until the owner drained the pipes: the child closing its end delivers EOF
// to the readers, while Wait would close the parent's end and drop whatever
// the pipe still buffers.
func (s *Supervisor) wait(p *Process) {
	<-p.drained
	err := p.cmd.Wait()
	p.markExited()

	s.mu.Lock()
	delete(s.procs, p)
	s.mu.Unlock()

	status := exitStatus(err)
	s.logger.Debug("process exited",
		zap.Int("pid", p.cmd.Process.Pid),
		zap.Int("code", status.Code),
		zap.String("signal", status.Signal))

	p.exitCh <- status
}

// ShutdownAll force-terminates every outstanding process. Safe to call once;
// later spawns are refused.
func (s *Supervisor) ShutdownAll() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	outstanding := make([]*Process, 0, len(s.procs))
	for p := range s.procs {
		outstanding = append(outstanding, p)
	}
	s.mu.Unlock()

	for _, p := range outstanding {
		if err := p.Kill(); err != nil {
			s.logger.Warn("failed to kill process on shutdown",
				zap.Int("pid", p.cmd.Process.Pid), zap.Error(err))
		}
	}
}

// ActiveCount reports how many processes are still tracked
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// exitStatus extracts code and signal from a Wait error
func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{Code: 0}
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitStatus{Code: -1, Signal: ws.Signal().String(), Signaled: true}
		}
		return ExitStatus{Code: ee.ExitCode()}
	}
	// Wait itself failed; treat as a generic nonzero exit
	return ExitStatus{Code: -1}
}

// IsTransientSpawnError reports whether a spawn failure is on the allow-list
// of transient OS conditions worth a single automatic retry.
func IsTransientSpawnError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ETXTBSY)
}
