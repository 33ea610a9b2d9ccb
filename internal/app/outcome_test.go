package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/medialink-go/internal/domain"
	"github.com/yourusername/medialink-go/internal/infrastructure"
)

// fakeProber scripts the artifact probe and records removals
type fakeProber struct {
	exists  bool
	valid   bool
	removed []string
}

func (p *fakeProber) Exists(string) bool { return p.exists }
func (p *fakeProber) Valid(string) bool  { return p.valid }
func (p *fakeProber) Remove(path string) error {
	p.removed = append(p.removed, path)
	return nil
}

var gracefulCodes = []int{255}

func completedStatus() infrastructure.ExitStatus {
	return infrastructure.ExitStatus{Code: 0}
}

func TestClassifyOutcome_CompletedValid(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	p := &fakeProber{exists: true, valid: true}

	o := classifyOutcome(s, completedStatus(), gracefulCodes, p)

	assert.Equal(t, domain.OutcomeSuccess, o.Tag)
	assert.True(t, o.FileKept)
	assert.Empty(t, p.removed)
}

func TestClassifyOutcome_DiagnosticsNeverOverrideUsableFile(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	s.Progress.AddDiagnostic("https://cdn/seg3.ts: Connection refused")
	s.Progress.AddDiagnostic("retrying...")
	p := &fakeProber{exists: true, valid: true}

	o := classifyOutcome(s, completedStatus(), gracefulCodes, p)

	assert.Equal(t, domain.OutcomeSuccess, o.Tag)
	assert.Contains(t, o.Message, "Connection refused")
}

func TestClassifyOutcome_CanceledWithUsableFile(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	s.MarkCancelRequested()
	p := &fakeProber{exists: true, valid: true}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: 255}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomePartialSuccess, o.Tag)
	assert.True(t, o.FileKept)
	assert.Empty(t, p.removed)
}

func TestClassifyOutcome_CanceledLivestreamIsFullSuccess(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 0, 0, true)
	s.MarkCancelRequested()
	p := &fakeProber{exists: true, valid: true}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: 255}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeSuccess, o.Tag)
	assert.True(t, o.FileKept)
}

func TestClassifyOutcome_CanceledBeforeUsableOutput(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaDirect, "/out/a.mp4", 0, 1000, false)
	s.MarkCancelRequested()
	// Zero-byte placeholder on disk: exists but structurally empty
	p := &fakeProber{exists: true, valid: false}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: -1, Signal: "killed", Signaled: true}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeCanceled, o.Tag)
	assert.False(t, o.FileKept)
	assert.Equal(t, []string{"/out/a.mp4"}, p.removed)
}

func TestClassifyOutcome_GracefulExitCodeImpliesCancel(t *testing.T) {
	// Cancel flag never set, but the tool exited with its cooperative
	// shutdown code: treated as canceled, not as an error.
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	p := &fakeProber{exists: false}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: 255}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeCanceled, o.Tag)
}

func TestClassifyOutcome_SignalImpliesCancel(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	p := &fakeProber{exists: false}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: -1, Signal: "terminated", Signaled: true}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeCanceled, o.Tag)
}

func TestClassifyOutcome_DirectoryMissing(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	s.Progress.AddDiagnostic("/out/a.mp4: No such file or directory")
	p := &fakeProber{exists: false}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: 1}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeError, o.Tag)
	assert.Equal(t, domain.KeyDirectoryMissing, o.Key)
}

func TestClassifyOutcome_PermissionDenied(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	s.Progress.AddDiagnostic("/out/a.mp4: Permission denied")
	p := &fakeProber{exists: true, valid: false}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: 1}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeError, o.Tag)
	assert.Equal(t, domain.KeyPermissionDenied, o.Key)
	assert.Equal(t, []string{"/out/a.mp4"}, p.removed)
}

func TestClassifyOutcome_InvalidOutput(t *testing.T) {
	// Zero exit but the artifact is not a recognizable media file
	s := domain.NewSession("s1", domain.MediaDASH, "/out/a.mp4", 100, 0, false)
	p := &fakeProber{exists: true, valid: false}

	o := classifyOutcome(s, completedStatus(), gracefulCodes, p)

	assert.Equal(t, domain.OutcomeError, o.Tag)
	assert.Equal(t, domain.KeyInvalidOutput, o.Key)
}

func TestClassifyOutcome_ReapFailureIsError(t *testing.T) {
	// A failed reap reports code -1 without a signal; that must never read
	// as a cooperative shutdown.
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	p := &fakeProber{exists: false}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: -1}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeError, o.Tag)
	assert.Equal(t, domain.KeyTransferFailed, o.Key)
}

func TestClassifyOutcome_GenericFailure(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	p := &fakeProber{exists: false}

	o := classifyOutcome(s, infrastructure.ExitStatus{Code: 8}, gracefulCodes, p)

	assert.Equal(t, domain.OutcomeError, o.Tag)
	assert.Equal(t, domain.KeyTransferFailed, o.Key)
	assert.Contains(t, o.Message, "code 8")
}

func TestTerminalMessage(t *testing.T) {
	s := domain.NewSession("s1", domain.MediaHLS, "/out/a.mp4", 100, 0, false)
	s.Progress.FinalTime = 42.5
	s.Progress.DownloadedBytes = 1024
	s.Progress.SegmentCount = 3
	s.Progress.AddDiagnostic("seg7: Connection refused")

	msg := terminalMessage(s, "stopped on request, output saved")

	assert.Contains(t, msg, "stopped on request, output saved")
	assert.Contains(t, msg, "processed 42.5s, 1024 bytes")
	assert.Contains(t, msg, "3 segments")
	assert.Contains(t, msg, "seg7: Connection refused")
}
