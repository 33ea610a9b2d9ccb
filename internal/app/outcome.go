package app

import (
	"fmt"
	"strings"

	"github.com/yourusername/medialink-go/internal/domain"
	"github.com/yourusername/medialink-go/internal/infrastructure"
)

// ArtifactProber answers whether the output file exists and is structurally
// valid. Swappable in tests.
type ArtifactProber interface {
	Exists(path string) bool
	Valid(path string) bool
	Remove(path string) error
}

// fsProber probes the real filesystem
type fsProber struct{}

func (fsProber) Exists(path string) bool { return infrastructure.FileExists(path) }
func (fsProber) Valid(path string) bool  { return infrastructure.ProbeArtifact(path) }
func (fsProber) Remove(path string) error {
	return infrastructure.RemoveFile(path)
}

// exitSignals are the ground-truth inputs to the decision ladder
type exitSignals struct {
	completed      bool // zero exit code, no signal
	killedBySignal bool
	gracefulExit   bool // tool-specific cooperative-shutdown exit code
	wasCanceled    bool
}

func deriveSignals(s *domain.Session, status infrastructure.ExitStatus, gracefulCodes []int) exitSignals {
	sig := exitSignals{
		completed:      status.Completed(),
		killedBySignal: status.Signaled,
	}
	for _, code := range gracefulCodes {
		if !status.Signaled && status.Code == code {
			sig.gracefulExit = true
			break
		}
	}
	sig.wasCanceled = s.Canceled || sig.gracefulExit || sig.killedBySignal
	return sig
}

// classifyOutcome runs the decision ladder exactly once for a terminated
// session. The artifact probe is authoritative for whether the output is
// usable; diagnostic lines never override a usable file. Files on the
// discard paths are deleted.
func classifyOutcome(s *domain.Session, status infrastructure.ExitStatus, gracefulCodes []int, prober ArtifactProber) domain.Outcome {
	sig := deriveSignals(s, status, gracefulCodes)
	exists := prober.Exists(s.OutputPath)
	valid := exists && prober.Valid(s.OutputPath)

	switch {
	case sig.wasCanceled && valid:
		// A user-stopped livestream recording is everything that was ever
		// going to exist, so it counts as a full success.
		tag := domain.OutcomePartialSuccess
		if s.Strategy == domain.StrategyLivestream {
			tag = domain.OutcomeSuccess
		}
		return domain.Outcome{
			Tag:      tag,
			Message:  terminalMessage(s, "stopped on request, output saved"),
			FileKept: true,
		}

	case sig.wasCanceled:
		if exists {
			_ = prober.Remove(s.OutputPath)
		}
		return domain.Outcome{
			Tag:     domain.OutcomeCanceled,
			Message: terminalMessage(s, "canceled before a usable file was produced"),
		}

	case sig.completed && valid:
		return domain.Outcome{
			Tag:      domain.OutcomeSuccess,
			Message:  terminalMessage(s, "completed"),
			FileKept: true,
		}

	default:
		if exists {
			_ = prober.Remove(s.OutputPath)
		}
		key, reason := classifyError(s, status, sig, valid)
		return domain.Outcome{
			Tag:     domain.OutcomeError,
			Key:     key,
			Message: terminalMessage(s, reason),
		}
	}
}

// classifyError sub-classifies the error case from exit codes and diagnostic
// substrings.
func classifyError(s *domain.Session, status infrastructure.ExitStatus, sig exitSignals, valid bool) (domain.ErrorKey, string) {
	diags := strings.ToLower(strings.Join(s.Progress.Diagnostics, "\n"))

	if strings.Contains(diags, "no such file or directory") ||
		strings.Contains(diags, "could not open file") {
		return domain.KeyDirectoryMissing, "output directory disappeared during the transfer"
	}
	if strings.Contains(diags, "permission denied") || strings.Contains(diags, "operation not permitted") {
		return domain.KeyPermissionDenied, "the tool was denied access to the destination"
	}
	if sig.completed && !valid {
		return domain.KeyInvalidOutput, "the tool reported success but produced no usable file"
	}
	return domain.KeyTransferFailed, fmt.Sprintf("the tool exited with code %d", status.Code)
}

// terminalMessage builds the human message for any terminal push: the
// summary, joined diagnostics, end-of-run statistics and wall duration.
func terminalMessage(s *domain.Session, summary string) string {
	var b strings.Builder
	b.WriteString(summary)

	ps := &s.Progress
	if ps.FinalTime > 0 || ps.DownloadedBytes > 0 || ps.SegmentCount > 0 {
		b.WriteString(fmt.Sprintf(" | processed %.1fs, %d bytes", ps.FinalTime, ps.DownloadedBytes))
		if ps.SegmentCount > 0 {
			b.WriteString(fmt.Sprintf(", %d segments", ps.SegmentCount))
		}
	}
	b.WriteString(fmt.Sprintf(" | ran %.1fs", s.Elapsed().Seconds()))

	if len(ps.Diagnostics) > 0 {
		b.WriteString(" | ")
		b.WriteString(strings.Join(ps.Diagnostics, "; "))
	}
	return b.String()
}
