package app

import (
	"context"
	"io"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/medialink-go/internal/domain"
	"github.com/yourusername/medialink-go/internal/infrastructure"
	"github.com/yourusername/medialink-go/internal/telemetry"
	"github.com/yourusername/medialink-go/pkg/logger"
)

// Sender pushes events to the caller. The framed stdio transport implements
// it; tests and the websocket hub provide their own.
type Sender interface {
	Send(ev domain.Event) error
}

// ProcessHandle is the per-session view of a supervised process. ReadersDone
// must be called after Stdout and Stderr hit EOF; the exit status is not
// delivered before that.
type ProcessHandle interface {
	PID() int
	Stdout() io.Reader
	Stderr() io.Reader
	Exit() <-chan infrastructure.ExitStatus
	Exited() bool
	ReadersDone()
	WriteControl(s string) error
	Signal(sig syscall.Signal) error
	Kill() error
}

// ProcessStarter spawns supervised processes
type ProcessStarter interface {
	Start(binary string, args []string, env []string) (ProcessHandle, error)
}

// SupervisorStarter adapts the concrete supervisor to ProcessStarter
type SupervisorStarter struct {
	*infrastructure.Supervisor
}

// Start spawns via the wrapped supervisor
func (s SupervisorStarter) Start(binary string, args []string, env []string) (ProcessHandle, error) {
	p, err := s.Supervisor.Start(binary, args, env)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Internal loop messages. Everything that touches session state funnels
// through one channel into a single consumer goroutine, so sessions need no
// locking.
type (
	startMsg     struct{ params *domain.StartParams }
	cancelMsg    struct{ sessionID string }
	telemetryMsg struct {
		sessionID string
		chunk     string
	}
	exitMsg struct {
		sessionID string
		status    infrastructure.ExitStatus
	}
	graceMsg struct{ sessionID string }
	forceMsg struct{ sessionID string }
	idleMsg  struct{}
)

// sessionRuntime bundles a session with its loop-owned runtime: process
// handle, speed estimator and the two escalation timers.
type sessionRuntime struct {
	sess       *domain.Session
	proc       ProcessHandle
	est        *telemetry.SpeedEstimator
	graceTimer *time.Timer
	forceTimer *time.Timer
	cleanedUp  bool
}

// SessionSummary is the read-only view served by the status API
type SessionSummary struct {
	ID              string              `json:"id"`
	MediaType       domain.MediaType    `json:"media_type"`
	Strategy        domain.Strategy     `json:"strategy"`
	State           domain.SessionState `json:"state"`
	Percent         float64             `json:"percent"`
	DownloadedBytes int64               `json:"downloaded_bytes"`
	StartedAt       time.Time           `json:"started_at"`
}

// Orchestrator owns the session store and runs the event loop that drives
// every session from start request to terminal outcome.
type Orchestrator struct {
	cfg      *domain.Config
	starter  ProcessStarter
	sender   Sender
	history  domain.HistoryRepository            // optional
	notifier *infrastructure.NotificationService // optional
	eventLog *logger.MultiLogger                 // optional
	logger   *zap.Logger
	prober   ArtifactProber

	msgs      chan any
	quit      chan struct{}
	quitOnce  sync.Once
	busy      int
	idleTimer *time.Timer

	// loop-owned; never touched outside the consumer goroutine
	sessions map[string]*sessionRuntime

	// mirror of the registry for the status API
	mu        sync.RWMutex
	summaries map[string]SessionSummary

	now func() time.Time
}

// NewOrchestrator creates an orchestrator. history, notifier and eventLog
// may be nil.
func NewOrchestrator(
	cfg *domain.Config,
	starter ProcessStarter,
	sender Sender,
	history domain.HistoryRepository,
	notifier *infrastructure.NotificationService,
	eventLog *logger.MultiLogger,
	zl *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		starter:   starter,
		sender:    sender,
		history:   history,
		notifier:  notifier,
		eventLog:  eventLog,
		logger:    zl,
		prober:    fsProber{},
		msgs:      make(chan any, 256),
		quit:      make(chan struct{}),
		sessions:  make(map[string]*sessionRuntime),
		summaries: make(map[string]SessionSummary),
		now:       time.Now,
	}
}

// Dispatch routes one caller request into the event loop. Safe to call from
// the transport reader goroutine.
func (o *Orchestrator) Dispatch(req *domain.Request) {
	switch req.Command {
	case domain.CommandStart:
		if req.Start == nil {
			o.send(domain.NewErrorEvent("", domain.KeyInvalidRequest, "start command without parameters"))
			return
		}
		o.post(startMsg{params: req.Start})
	case domain.CommandCancel:
		if req.Cancel == nil {
			o.send(domain.NewErrorEvent("", domain.KeyInvalidRequest, "cancel command without parameters"))
			return
		}
		o.post(cancelMsg{sessionID: req.Cancel.SessionID})
	default:
		o.send(domain.NewErrorEvent("", domain.KeyInvalidRequest, "unknown command: "+string(req.Command)))
	}
}

// Run consumes loop messages until the context is canceled or the idle
// shutdown fires. On return every outstanding process has been
// force-terminated exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.armIdleTimer()
	defer o.stopIdleTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.quit:
			return nil
		case msg := <-o.msgs:
			o.handle(msg)
		}
	}
}

// Done is closed once the idle shutdown has been requested
func (o *Orchestrator) Done() <-chan struct{} {
	return o.quit
}

// ActiveSessions returns a snapshot of the in-flight sessions
func (o *Orchestrator) ActiveSessions() []SessionSummary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]SessionSummary, 0, len(o.summaries))
	for _, s := range o.summaries {
		out = append(out, s)
	}
	return out
}

func (o *Orchestrator) handle(msg any) {
	switch m := msg.(type) {
	case startMsg:
		o.handleStart(m.params)
	case cancelMsg:
		o.handleCancel(m.sessionID)
	case telemetryMsg:
		o.handleTelemetry(m.sessionID, m.chunk)
	case exitMsg:
		o.handleExit(m.sessionID, m.status)
	case graceMsg:
		o.handleGraceTimer(m.sessionID)
	case forceMsg:
		o.handleForceTimer(m.sessionID)
	case idleMsg:
		o.handleIdle()
	}
}

func (o *Orchestrator) post(msg any) {
	select {
	case o.msgs <- msg:
	case <-o.quit:
	}
}

func (o *Orchestrator) send(ev domain.Event) {
	if err := o.sender.Send(ev); err != nil {
		o.logger.Warn("failed to push event",
			zap.String("type", string(ev.Type)),
			zap.String("session_id", ev.SessionID),
			zap.Error(err))
	}
}

func (o *Orchestrator) logEvent(event string, fields ...zap.Field) {
	if o.eventLog != nil {
		o.eventLog.LogSessionEvent(event, fields...)
	}
}

// --- idle shutdown -------------------------------------------------------

func (o *Orchestrator) armIdleTimer() {
	if o.cfg.Host.IdleShutdown <= 0 {
		return
	}
	o.stopIdleTimer()
	o.idleTimer = time.AfterFunc(o.cfg.Host.IdleShutdown, func() {
		o.post(idleMsg{})
	})
}

func (o *Orchestrator) stopIdleTimer() {
	if o.idleTimer != nil {
		o.idleTimer.Stop()
		o.idleTimer = nil
	}
}

func (o *Orchestrator) handleIdle() {
	if o.busy > 0 {
		return
	}
	o.logEvent("idle_shutdown")
	o.logger.Info("idle shutdown", zap.Duration("after", o.cfg.Host.IdleShutdown))
	o.quitOnce.Do(func() { close(o.quit) })
}

// updateSummary mirrors loop-owned state for the status API
func (o *Orchestrator) updateSummary(rt *sessionRuntime) {
	pct, _ := computePercent(rt.sess)
	o.mu.Lock()
	o.summaries[rt.sess.ID] = SessionSummary{
		ID:              rt.sess.ID,
		MediaType:       rt.sess.MediaType,
		Strategy:        rt.sess.Strategy,
		State:           rt.sess.State,
		Percent:         pct,
		DownloadedBytes: rt.sess.Progress.DownloadedBytes,
		StartedAt:       rt.sess.StartedAt,
	}
	o.mu.Unlock()
}

func (o *Orchestrator) dropSummary(id string) {
	o.mu.Lock()
	delete(o.summaries, id)
	o.mu.Unlock()
}
