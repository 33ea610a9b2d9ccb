// Package telemetry turns the media tool's unstructured stderr output into
// progress state and sliding-window transfer-rate estimates. The stream is
// treated as an opaque, regex-shaped telemetry source; nothing here decodes
// media containers.
package telemetry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/medialink-go/internal/domain"
)

var (
	// time=00:01:23.45 on the stats line, centisecond precision
	clockRe = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2})\.(\d+)`)
	// out_time_ms on -progress output; the value is in microseconds despite
	// the key's name, a long-standing quirk of the tool
	outTimeRe = regexp.MustCompile(`out_time_ms=(\d+)`)
	// size=    2048kB on the stats line (kB units)
	sizeRe = regexp.MustCompile(`\bsize=\s*(\d+)kB`)
	// total_size on -progress output, already bytes
	totalSizeRe = regexp.MustCompile(`total_size=(\d+)`)
	// one line per segment fetched on segmented sources
	segmentRe = regexp.MustCompile(`(?i)Opening '[^']+' for reading`)
)

// diagnosticKeywords is the curated case-insensitive set of substrings that
// promote a free-text line into the session's diagnostic ring buffer.
var diagnosticKeywords = []string{
	"error",
	"failed",
	"not found",
	"permission denied",
	"connection refused",
	"no such file",
}

// Update reports what a telemetry chunk changed
type Update struct {
	Changed        bool
	BytesIncreased bool // cumulative size counter grew strictly
}

// Extract parses one raw telemetry chunk and applies its deltas to the
// progress state. It is stateless across calls: everything it needs lives in
// the chunk and the state. Each detector applies independently.
func Extract(chunk string, ps *domain.ProgressState, mediaType domain.MediaType) Update {
	var up Update

	if secs, ok := parseProcessedTime(chunk); ok {
		if secs != ps.CurrentTime {
			up.Changed = true
		}
		ps.CurrentTime = secs
		ps.FinalTime = secs
	}

	if bytes, ok := parseCumulativeSize(chunk); ok {
		// Duplicate or out-of-order repeats of the counter are ignored for
		// rate purposes; only a strict increase is a real transfer delta.
		if bytes > ps.DownloadedBytes {
			ps.DownloadedBytes = bytes
			up.Changed = true
			up.BytesIncreased = true
		}
	}

	if mediaType == domain.MediaHLS {
		if n := len(segmentRe.FindAllStringIndex(chunk, -1)); n > 0 {
			ps.SegmentCount += n
			up.Changed = true
		}
	}

	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isDiagnosticLine(line) {
			ps.AddDiagnostic(line)
			up.Changed = true
		}
	}

	return up
}

// parseProcessedTime returns the media seconds processed, preferring the
// sub-unit counter when both forms appear in the chunk.
func parseProcessedTime(chunk string) (float64, bool) {
	if m := outTimeRe.FindAllStringSubmatch(chunk, -1); len(m) > 0 {
		us, err := strconv.ParseInt(m[len(m)-1][1], 10, 64)
		if err == nil {
			return float64(us) / 1e6, true
		}
	}
	m := clockRe.FindAllStringSubmatch(chunk, -1)
	if len(m) == 0 {
		return 0, false
	}
	last := m[len(m)-1]
	h, _ := strconv.Atoi(last[1])
	min, _ := strconv.Atoi(last[2])
	sec, _ := strconv.Atoi(last[3])
	frac, _ := strconv.Atoi(last[4])
	fracSecs := float64(frac)
	for i := 0; i < len(last[4]); i++ {
		fracSecs /= 10
	}
	return float64(h*3600+min*60+sec) + fracSecs, true
}

// parseCumulativeSize returns the cumulative bytes reported in the chunk
func parseCumulativeSize(chunk string) (int64, bool) {
	if m := totalSizeRe.FindAllStringSubmatch(chunk, -1); len(m) > 0 {
		b, err := strconv.ParseInt(m[len(m)-1][1], 10, 64)
		if err == nil {
			return b, true
		}
	}
	m := sizeRe.FindAllStringSubmatch(chunk, -1)
	if len(m) == 0 {
		return 0, false
	}
	kb, err := strconv.ParseInt(m[len(m)-1][1], 10, 64)
	if err != nil {
		return 0, false
	}
	return kb * 1024, true
}

func isDiagnosticLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range diagnosticKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
