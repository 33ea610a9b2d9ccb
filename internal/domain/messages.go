package domain

// CommandType tags an incoming caller request
type CommandType string

const (
	CommandStart  CommandType = "start"
	CommandCancel CommandType = "cancel"
)

// EventType tags an outgoing push to the caller
type EventType string

const (
	EventProgress     EventType = "progress"
	EventResolvedPath EventType = "resolved-path"
	EventSuccess      EventType = "success"
	EventCanceled     EventType = "canceled"
	EventError        EventType = "error"
)

// ErrorKey is the stable machine-readable key attached to terminal errors
type ErrorKey string

const (
	KeyInvalidRequest     ErrorKey = "invalid-request"
	KeyDestinationMissing ErrorKey = "destination-missing"
	KeyInsufficientSpace  ErrorKey = "insufficient-space"
	KeySpawnFailed        ErrorKey = "spawn-failed"
	KeyDirectoryMissing   ErrorKey = "directory-missing"
	KeyPermissionDenied   ErrorKey = "permission-denied"
	KeyInvalidOutput      ErrorKey = "invalid-output"
	KeyTransferFailed     ErrorKey = "transfer-failed"
)

// Request is one framed command from the caller. The id is caller-assigned;
// direct replies echo it, pushes carry none.
type Request struct {
	ID      string        `json:"id"`
	Command CommandType   `json:"command"`
	Start   *StartParams  `json:"start,omitempty"`
	Cancel  *CancelParams `json:"cancel,omitempty"`
}

// StartParams carries everything needed to begin a transfer session
type StartParams struct {
	SessionID       string    `json:"sessionId"`
	MediaType       MediaType `json:"mediaType"`
	URL             string    `json:"url"`
	OutputPath      string    `json:"outputPath"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	TotalBytes      int64     `json:"totalBytes,omitempty"`
	Live            bool      `json:"live,omitempty"`
	Headers         []string  `json:"headers,omitempty"`
	ExtraArgs       []string  `json:"extraArgs,omitempty"`
}

// CancelParams identifies the session to cancel
type CancelParams struct {
	SessionID string `json:"sessionId"`
}

// ProgressPayload is the body of a progress push
type ProgressPayload struct {
	Percent         float64  `json:"percent"`
	Speed           int64    `json:"speed"` // bytes per second, rounded
	ElapsedSeconds  float64  `json:"elapsedTime"`
	Strategy        Strategy `json:"strategy"`
	DownloadedBytes int64    `json:"downloadedBytes"`
	TotalBytes      int64    `json:"totalBytes,omitempty"`
	CurrentTime     float64  `json:"currentTime,omitempty"`
	ETASeconds      float64  `json:"eta,omitempty"`
}

// TransferStats summarizes a finished run for the terminal message
type TransferStats struct {
	FinalTimeSeconds float64 `json:"finalTime,omitempty"`
	DownloadedBytes  int64   `json:"downloadedBytes,omitempty"`
	Segments         int     `json:"segments,omitempty"`
	ElapsedSeconds   float64 `json:"elapsedTime"`
}

// Event is one framed push/reply to the caller
type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"sessionId"`
	Progress  *ProgressPayload `json:"progress,omitempty"`
	Path      string           `json:"path,omitempty"`
	Stats     *TransferStats   `json:"stats,omitempty"`
	IsPartial bool             `json:"isPartial,omitempty"`
	Key       ErrorKey         `json:"key,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// NewProgressEvent builds a progress push for a session
func NewProgressEvent(sessionID string, p ProgressPayload) Event {
	return Event{Type: EventProgress, SessionID: sessionID, Progress: &p}
}

// NewResolvedPathEvent announces the output path chosen for a session
func NewResolvedPathEvent(sessionID, path string) Event {
	return Event{Type: EventResolvedPath, SessionID: sessionID, Path: path}
}

// NewSuccessEvent builds the terminal success push. It never carries an
// explicit percent field; the caller treats success as 100%.
func NewSuccessEvent(sessionID string, stats TransferStats, isPartial bool, message string) Event {
	return Event{Type: EventSuccess, SessionID: sessionID, Stats: &stats, IsPartial: isPartial, Message: message}
}

// NewCanceledEvent builds the terminal canceled push
func NewCanceledEvent(sessionID string) Event {
	return Event{Type: EventCanceled, SessionID: sessionID}
}

// NewErrorEvent builds the terminal error push
func NewErrorEvent(sessionID string, key ErrorKey, message string) Event {
	return Event{Type: EventError, SessionID: sessionID, Key: key, Message: message}
}
