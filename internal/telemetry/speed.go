package telemetry

import "time"

// pruneSlack is how much history beyond the window a sample may outlive
// before it is dropped. Pruning happens eagerly on every record and read.
const pruneSlack = 2 * time.Second

// byteSample is one (timestamp, cumulative-bytes) observation. The sample
// list is non-decreasing in both time and bytes.
type byteSample struct {
	atMs  int64
	bytes int64
}

// SpeedEstimator computes an instantaneous transfer rate over a sliding
// window of cumulative-byte samples. It is owned by a single session and is
// not safe for concurrent use.
type SpeedEstimator struct {
	windowMs int64
	slackMs  int64
	samples  []byteSample
}

// NewSpeedEstimator creates an estimator with the given window
func NewSpeedEstimator(window time.Duration) *SpeedEstimator {
	return &SpeedEstimator{
		windowMs: window.Milliseconds(),
		slackMs:  pruneSlack.Milliseconds(),
	}
}

// Record appends a sample for a strictly-increasing byte update. Samples that
// would break monotonicity are dropped.
func (e *SpeedEstimator) Record(at time.Time, bytes int64) {
	nowMs := at.UnixMilli()
	if n := len(e.samples); n > 0 {
		last := e.samples[n-1]
		if nowMs < last.atMs || bytes <= last.bytes {
			return
		}
	}
	e.samples = append(e.samples, byteSample{atMs: nowMs, bytes: bytes})
	e.prune(nowMs)
}

// BytesPerSecond returns the estimated rate at time now, always >= 0. A
// transfer with no sample inside the window reads as zero rather than
// spiking on stale data: the newest sample is projected to a virtual sample
// at now, so a stall decays the rate toward zero.
func (e *SpeedEstimator) BytesPerSecond(now time.Time) float64 {
	nowMs := now.UnixMilli()
	e.prune(nowMs)

	if len(e.samples) == 0 {
		return 0
	}

	last := e.samples[len(e.samples)-1]
	windowStart := nowMs - e.windowMs
	if last.atMs <= windowStart {
		return 0
	}

	// Oldest sample at or after the window start; no interpolation at the
	// boundary.
	oldest := last
	for _, s := range e.samples {
		if s.atMs >= windowStart {
			oldest = s
			break
		}
	}

	deltaBytes := last.bytes - oldest.bytes
	if deltaBytes < 0 {
		deltaBytes = 0
	}
	deltaMs := nowMs - oldest.atMs
	if deltaMs < 1 {
		deltaMs = 1
	}
	return float64(deltaBytes) * 1000 / float64(deltaMs)
}

// SampleCount reports how many samples survive pruning at time now
func (e *SpeedEstimator) SampleCount(now time.Time) int {
	e.prune(now.UnixMilli())
	return len(e.samples)
}

func (e *SpeedEstimator) prune(nowMs int64) {
	cutoff := nowMs - e.windowMs - e.slackMs
	i := 0
	for i < len(e.samples) && e.samples[i].atMs < cutoff {
		i++
	}
	if i > 0 {
		e.samples = e.samples[i:]
	}
}
