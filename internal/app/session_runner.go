package app

import (
	"io"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/medialink-go/internal/domain"
	"github.com/yourusername/medialink-go/internal/infrastructure"
	"github.com/yourusername/medialink-go/internal/telemetry"
)

// handleStart validates, pre-flights and spawns a new session. All failures
// before the process starts surface synchronously as error events; no
// session survives them.
func (o *Orchestrator) handleStart(params *domain.StartParams) {
	id := params.SessionID

	if _, exists := o.sessions[id]; exists {
		o.send(domain.NewErrorEvent(id, domain.KeyInvalidRequest, "session already active"))
		return
	}

	profile, err := domain.ProfileFor(params.MediaType)
	if err != nil {
		o.send(domain.NewErrorEvent(id, domain.KeyInvalidRequest, err.Error()))
		return
	}
	if err := profile.Validate(params); err != nil {
		o.send(domain.NewErrorEvent(id, domain.KeyInvalidRequest, err.Error()))
		return
	}

	if key, err := o.preflight(params.OutputPath); err != nil {
		o.send(domain.NewErrorEvent(id, key, err.Error()))
		return
	}

	sess := domain.NewSession(id, params.MediaType, params.OutputPath,
		params.DurationSeconds, params.TotalBytes, params.Live)
	rt := &sessionRuntime{
		sess: sess,
		est:  telemetry.NewSpeedEstimator(o.cfg.Progress.SpeedWindow),
	}

	o.sessions[id] = rt
	o.busy++
	o.stopIdleTimer()

	args := profile.BuildArgs(params)
	o.logEvent("session_started",
		zap.String("session_id", id),
		zap.String("media_type", string(params.MediaType)),
		zap.String("strategy", string(sess.Strategy)),
		zap.String("command", infrastructure.ShellEscapeCommand(o.cfg.Tool.BinaryPath, args...)))

	proc, err := o.spawnWithRetry(args)
	if err != nil {
		o.logger.Error("spawn failed", zap.String("session_id", id), zap.Error(err))
		o.finalize(rt, domain.Outcome{
			Tag:     domain.OutcomeError,
			Key:     domain.KeySpawnFailed,
			Message: "could not start the media tool: " + err.Error(),
		})
		return
	}

	rt.proc = proc
	o.updateSummary(rt)
	o.send(domain.NewResolvedPathEvent(id, params.OutputPath))
	o.startReaders(rt)
}

// preflight checks the destination before any process is spawned
func (o *Orchestrator) preflight(outputPath string) (domain.ErrorKey, error) {
	dir := filepath.Dir(outputPath)

	if err := infrastructure.CheckDirectory(dir); err != nil {
		return domain.KeyDestinationMissing, err
	}
	if err := infrastructure.CheckWritable(dir); err != nil {
		return domain.KeyPermissionDenied, err
	}
	minFree := uint64(o.cfg.Transfer.MinFreeMB) * 1024 * 1024
	if err := infrastructure.CheckFreeSpace(dir, minFree); err != nil {
		return domain.KeyInsufficientSpace, err
	}
	return "", nil
}

// spawnWithRetry starts the tool, retrying exactly once for allow-listed
// transient spawn errors. The failed first attempt is invisible to the
// caller.
func (o *Orchestrator) spawnWithRetry(args []string) (ProcessHandle, error) {
	proc, err := o.starter.Start(o.cfg.Tool.BinaryPath, args, nil)
	if err == nil {
		return proc, nil
	}
	if !infrastructure.IsTransientSpawnError(err) {
		return nil, err
	}

	o.logger.Warn("transient spawn error, retrying once", zap.Error(err))
	return o.starter.Start(o.cfg.Tool.BinaryPath, args, nil)
}

// startReaders pumps the process streams and exit status into the loop. Both
// streams are read to EOF before the process is released for reaping, and the
// exit message is posted only after that, so the final telemetry chunk is
// never lost to the classifier.
func (o *Orchestrator) startReaders(rt *sessionRuntime) {
	id := rt.sess.ID
	proc := rt.proc

	var wg sync.WaitGroup
	wg.Add(2)
	go o.pumpTelemetry(id, proc.Stderr(), &wg)
	go o.pumpTelemetry(id, proc.Stdout(), &wg)

	go func() {
		wg.Wait()
		proc.ReadersDone()
		status := <-proc.Exit()
		o.post(exitMsg{sessionID: id, status: status})
	}()
}

func (o *Orchestrator) pumpTelemetry(id string, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			o.post(telemetryMsg{sessionID: id, chunk: string(buf[:n])})
		}
		if err != nil {
			return
		}
	}
}

// handleTelemetry applies one raw chunk to the session and emits progress if
// anything user-visible changed.
func (o *Orchestrator) handleTelemetry(id, chunk string) {
	rt, ok := o.sessions[id]
	if !ok {
		return
	}

	now := o.now()

	up := telemetry.Extract(chunk, &rt.sess.Progress, rt.sess.MediaType)
	if up.BytesIncreased {
		rt.est.Record(now, rt.sess.Progress.DownloadedBytes)
	}
	if !up.Changed {
		return
	}

	o.updateSummary(rt)
	if payload, ok := buildProgress(rt.sess, rt.est, now, &o.cfg.Progress); ok {
		o.send(domain.NewProgressEvent(id, payload))
	}
}

// handleCancel drives the cooperative-then-forced escalation. Unknown or
// already-finished ids get an immediate terminal acknowledgment.
func (o *Orchestrator) handleCancel(id string) {
	rt, ok := o.sessions[id]
	if !ok {
		o.send(domain.NewCanceledEvent(id))
		return
	}
	if rt.sess.State == domain.StateCancelRequested {
		return // escalation already in flight
	}

	rt.sess.MarkCancelRequested()
	o.updateSummary(rt)
	o.logEvent("cancel_requested", zap.String("session_id", id))

	if rt.proc == nil {
		return
	}

	// Cooperative first: the tool's in-band stop request when a control
	// channel is open, a graceful signal otherwise.
	if err := rt.proc.WriteControl(o.cfg.Tool.QuitCommand); err != nil {
		if serr := rt.proc.Signal(syscall.SIGTERM); serr != nil {
			o.logger.Warn("graceful signal failed",
				zap.String("session_id", id), zap.Error(serr))
		}
	}

	rt.graceTimer = time.AfterFunc(o.cfg.Cancel.GraceTimeout, func() {
		o.post(graceMsg{sessionID: id})
	})
	rt.forceTimer = time.AfterFunc(o.cfg.Cancel.ForceTimeout, func() {
		o.post(forceMsg{sessionID: id})
	})
}

func (o *Orchestrator) handleGraceTimer(id string) {
	rt, ok := o.sessions[id]
	if !ok || rt.proc == nil || rt.proc.Exited() {
		return
	}
	o.logEvent("cancel_escalated", zap.String("session_id", id))
	if err := rt.proc.Signal(syscall.SIGKILL); err != nil {
		o.logger.Warn("forced signal failed", zap.String("session_id", id), zap.Error(err))
	}
}

func (o *Orchestrator) handleForceTimer(id string) {
	rt, ok := o.sessions[id]
	if !ok || rt.proc == nil || rt.proc.Exited() {
		return
	}
	o.logEvent("cancel_forced", zap.String("session_id", id))
	if err := rt.proc.Kill(); err != nil {
		o.logger.Warn("unconditional kill failed", zap.String("session_id", id), zap.Error(err))
	}
}

// handleExit classifies the run and finalizes the session. Every telemetry
// chunk has already been applied: the exit message is posted only after both
// stream pumps drained, and the loop channel preserves their order.
func (o *Orchestrator) handleExit(id string, status infrastructure.ExitStatus) {
	rt, ok := o.sessions[id]
	if !ok {
		return
	}

	outcome := classifyOutcome(rt.sess, status, o.cfg.Tool.GracefulExitCodes, o.prober)
	o.finalize(rt, outcome)
}

// finalize records the write-once outcome, removes the session from the
// registry ahead of the terminal push, and releases its busy slot exactly
// once regardless of which terminal path ran.
func (o *Orchestrator) finalize(rt *sessionRuntime, outcome domain.Outcome) {
	id := rt.sess.ID

	stopTimer(&rt.graceTimer)
	stopTimer(&rt.forceTimer)

	if !rt.sess.SetOutcome(outcome) {
		return
	}

	// Registry removal precedes the terminal message so a late cancel or a
	// duplicate start can never act on a stale handle.
	delete(o.sessions, id)
	o.dropSummary(id)

	switch outcome.Tag {
	case domain.OutcomeSuccess, domain.OutcomePartialSuccess:
		stats := domain.TransferStats{
			FinalTimeSeconds: rt.sess.Progress.FinalTime,
			DownloadedBytes:  rt.sess.Progress.DownloadedBytes,
			Segments:         rt.sess.Progress.SegmentCount,
			ElapsedSeconds:   rt.sess.Elapsed().Seconds(),
		}
		o.send(domain.NewSuccessEvent(id, stats, outcome.Tag == domain.OutcomePartialSuccess, outcome.Message))
	case domain.OutcomeCanceled:
		o.send(domain.NewCanceledEvent(id))
	case domain.OutcomeError:
		o.send(domain.NewErrorEvent(id, outcome.Key, outcome.Message))
	}

	o.logEvent("session_finished",
		zap.String("session_id", id),
		zap.String("outcome", string(outcome.Tag)),
		zap.Bool("file_kept", outcome.FileKept))

	if o.history != nil {
		if err := o.history.Create(domain.NewTransferRecord(rt.sess)); err != nil {
			o.logger.Warn("failed to persist transfer record",
				zap.String("session_id", id), zap.Error(err))
		}
	}
	if o.notifier != nil {
		o.notifier.NotifyOutcome(id, outcome)
	}

	o.cleanup(rt)
}

// cleanup decrements the busy counter exactly once per session and re-arms
// the idle shutdown timer when the host goes quiet.
func (o *Orchestrator) cleanup(rt *sessionRuntime) {
	if rt.cleanedUp {
		return
	}
	rt.cleanedUp = true

	o.busy--
	if o.busy == 0 {
		o.armIdleTimer()
	}
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
