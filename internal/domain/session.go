package domain

import (
	"time"
)

// SessionState represents the lifecycle state of a transfer session
type SessionState string

const (
	StateActive          SessionState = "active"
	StateCancelRequested SessionState = "cancel-requested"
	StateTerminated      SessionState = "terminated"
)

// MediaType represents the container/delivery format of the source
type MediaType string

const (
	MediaHLS    MediaType = "hls"
	MediaDASH   MediaType = "dash"
	MediaDirect MediaType = "direct"
)

// Strategy represents the progress-accounting method for a session
type Strategy string

const (
	StrategyTime       Strategy = "time"
	StrategySize       Strategy = "size"
	StrategyLivestream Strategy = "livestream"
)

// OutcomeTag classifies a terminated session
type OutcomeTag string

const (
	OutcomeSuccess        OutcomeTag = "success"
	OutcomePartialSuccess OutcomeTag = "partial-success"
	OutcomeCanceled       OutcomeTag = "canceled"
	OutcomeError          OutcomeTag = "error"
)

// DiagnosticCap bounds the per-session ring buffer of diagnostic lines
const DiagnosticCap = 10

// Outcome is the terminal classification of a session. It is assigned
// exactly once; no progress is emitted after it is set.
type Outcome struct {
	Tag      OutcomeTag
	Key      ErrorKey // set only for OutcomeError
	Message  string
	FileKept bool
}

// ProgressState holds everything inferred from the tool's telemetry stream.
// It is mutated only by the session's own event callbacks.
type ProgressState struct {
	DurationSeconds float64 // declared media duration, 0 if unknown
	TotalBytes      int64   // declared total size, 0 if unknown
	DownloadedBytes int64   // cumulative bytes observed in telemetry
	CurrentTime     float64 // media seconds processed so far
	FinalTime       float64 // retained for terminal messages after the stream ends
	SegmentCount    int     // HLS only
	Diagnostics     []string
	LastEmitPercent float64
	LastEmitAt      time.Time
}

// AddDiagnostic appends a line to the diagnostic ring buffer, dropping the
// oldest entry once the cap is reached.
func (ps *ProgressState) AddDiagnostic(line string) {
	if len(ps.Diagnostics) >= DiagnosticCap {
		ps.Diagnostics = ps.Diagnostics[1:]
	}
	ps.Diagnostics = append(ps.Diagnostics, line)
}

// Session represents one in-flight transfer operation, identified by a
// caller-supplied id.
type Session struct {
	ID         string
	MediaType  MediaType
	Strategy   Strategy
	OutputPath string
	Live       bool
	StartedAt  time.Time
	State      SessionState
	Progress   ProgressState
	Canceled   bool
	Outcome    *Outcome // write-once
}

// NewSession creates a session in the active state with its strategy derived
// from the metadata available at start time.
func NewSession(id string, mediaType MediaType, outputPath string, durationSeconds float64, totalBytes int64, live bool) *Session {
	s := &Session{
		ID:         id,
		MediaType:  mediaType,
		OutputPath: outputPath,
		Live:       live,
		StartedAt:  time.Now(),
		State:      StateActive,
	}
	s.Progress.DurationSeconds = durationSeconds
	s.Progress.TotalBytes = totalBytes
	s.Strategy = DeriveStrategy(mediaType, durationSeconds, totalBytes, live)
	return s
}

// DeriveStrategy selects the progress-accounting method from the metadata
// available at session start.
func DeriveStrategy(mediaType MediaType, durationSeconds float64, totalBytes int64, live bool) Strategy {
	if live {
		return StrategyLivestream
	}
	if durationSeconds > 0 {
		return StrategyTime
	}
	if totalBytes > 0 {
		return StrategySize
	}
	// No usable metadata: direct transfers still report a size counter,
	// segmented ones report processed time.
	if mediaType == MediaDirect {
		return StrategySize
	}
	return StrategyTime
}

// MarkCancelRequested flips the session into the cancel-requested state and
// suppresses further progress emission. Idempotent.
func (s *Session) MarkCancelRequested() {
	if s.State == StateActive {
		s.State = StateCancelRequested
	}
	s.Canceled = true
}

// SetOutcome records the terminal outcome. Returns false if an outcome was
// already set, in which case the session is left untouched.
func (s *Session) SetOutcome(o Outcome) bool {
	if s.Outcome != nil {
		return false
	}
	s.Outcome = &o
	s.State = StateTerminated
	return true
}

// IsTerminal reports whether the session has a terminal outcome
func (s *Session) IsTerminal() bool {
	return s.Outcome != nil
}

// Elapsed returns the wall-clock run duration so far
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}

// ValidateMediaType checks if a media type is valid
func ValidateMediaType(mt MediaType) bool {
	return mt == MediaHLS || mt == MediaDASH || mt == MediaDirect
}
