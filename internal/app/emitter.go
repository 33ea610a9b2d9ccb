package app

import (
	"math"
	"time"

	"github.com/yourusername/medialink-go/internal/domain"
	"github.com/yourusername/medialink-go/internal/telemetry"
)

// livestreamSentinel is the fixed percentage pushed for livestream sessions,
// where no meaningful completion fraction exists.
const livestreamSentinel = -1

// maxEmittedPercent caps computed percentages below 100 so the only "done"
// signal the caller ever sees is the terminal success message, which carries
// no percent field at all.
const maxEmittedPercent = 99.9

// computePercent derives the completion percentage for a session by its
// strategy. ok is false when the inputs needed by the strategy are not yet
// available.
func computePercent(s *domain.Session) (float64, bool) {
	ps := &s.Progress
	switch s.Strategy {
	case domain.StrategyTime:
		if ps.CurrentTime > 0 && ps.DurationSeconds > 0 {
			return clampPercent(ps.CurrentTime / ps.DurationSeconds * 100), true
		}
	case domain.StrategySize:
		if ps.DownloadedBytes > 0 && ps.TotalBytes > 0 {
			return clampPercent(float64(ps.DownloadedBytes) / float64(ps.TotalBytes) * 100), true
		}
	case domain.StrategyLivestream:
		return livestreamSentinel, true
	}
	return 0, false
}

func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > maxEmittedPercent {
		return maxEmittedPercent
	}
	return pct
}

// shouldEmit applies the throttle: a canceled session never emits; otherwise
// a push goes out when the percentage moved at least the configured delta or
// the emit interval elapsed since the last push.
func shouldEmit(s *domain.Session, pct float64, now time.Time, cfg *domain.ProgressConfig) bool {
	if s.Canceled || s.IsTerminal() {
		return false
	}
	if s.Progress.LastEmitAt.IsZero() {
		return true
	}
	if math.Abs(roundPercent(pct)-roundPercent(s.Progress.LastEmitPercent)) >= cfg.PercentDelta {
		return true
	}
	return now.Sub(s.Progress.LastEmitAt) >= cfg.EmitInterval
}

func roundPercent(pct float64) float64 {
	return math.Round(pct*10) / 10
}

// buildProgress assembles the progress payload for a session. ok is false
// when the session has nothing emittable yet.
func buildProgress(s *domain.Session, est *telemetry.SpeedEstimator, now time.Time, cfg *domain.ProgressConfig) (domain.ProgressPayload, bool) {
	pct, ok := computePercent(s)
	if !ok {
		return domain.ProgressPayload{}, false
	}
	if !shouldEmit(s, pct, now, cfg) {
		return domain.ProgressPayload{}, false
	}

	speed := est.BytesPerSecond(now)
	payload := domain.ProgressPayload{
		Percent:         roundPercent(pct),
		Speed:           int64(math.Round(speed)),
		ElapsedSeconds:  math.Round(now.Sub(s.StartedAt).Seconds()*10) / 10,
		Strategy:        s.Strategy,
		DownloadedBytes: s.Progress.DownloadedBytes,
		TotalBytes:      s.Progress.TotalBytes,
		CurrentTime:     s.Progress.CurrentTime,
	}

	if s.Strategy == domain.StrategySize {
		if eta, ok := computeETA(pct, speed, &s.Progress); ok {
			payload.ETASeconds = eta
		}
	}

	s.Progress.LastEmitPercent = pct
	s.Progress.LastEmitAt = now
	return payload, true
}

// computeETA estimates remaining seconds for the size strategy. Withheld when
// the speed or percentage is zero; the estimated total falls back to a
// projection from the observed bytes when no total was declared.
func computeETA(pct, speed float64, ps *domain.ProgressState) (float64, bool) {
	if speed <= 0 || pct <= 0 {
		return 0, false
	}
	estimatedTotal := float64(ps.TotalBytes)
	if estimatedTotal <= 0 {
		estimatedTotal = float64(ps.DownloadedBytes) / (pct / 100)
	}
	eta := (100 - pct) / 100 * estimatedTotal / speed
	return math.Round(eta*10) / 10, true
}
