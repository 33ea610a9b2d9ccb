package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSession(t *testing.T) {
	s := NewSession("sess-1", MediaHLS, "/tmp/out.mp4", 120, 0, false)

	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, MediaHLS, s.MediaType)
	assert.Equal(t, StrategyTime, s.Strategy)
	assert.Equal(t, StateActive, s.State)
	assert.False(t, s.Canceled)
	assert.Nil(t, s.Outcome)
	assert.Equal(t, 120.0, s.Progress.DurationSeconds)
}

func TestDeriveStrategy(t *testing.T) {
	assert.Equal(t, StrategyLivestream, DeriveStrategy(MediaHLS, 120, 500, true))
	assert.Equal(t, StrategyTime, DeriveStrategy(MediaHLS, 120, 0, false))
	assert.Equal(t, StrategySize, DeriveStrategy(MediaDirect, 0, 1000, false))
	assert.Equal(t, StrategyTime, DeriveStrategy(MediaDASH, 90, 1000, false))
	assert.Equal(t, StrategySize, DeriveStrategy(MediaDirect, 0, 0, false))
	assert.Equal(t, StrategyTime, DeriveStrategy(MediaHLS, 0, 0, false))
}

func TestSession_MarkCancelRequested(t *testing.T) {
	s := NewSession("sess-1", MediaDirect, "/tmp/out.mp4", 0, 1000, false)

	s.MarkCancelRequested()
	assert.Equal(t, StateCancelRequested, s.State)
	assert.True(t, s.Canceled)

	// Idempotent
	s.MarkCancelRequested()
	assert.Equal(t, StateCancelRequested, s.State)
}

func TestSession_SetOutcomeWriteOnce(t *testing.T) {
	s := NewSession("sess-1", MediaDirect, "/tmp/out.mp4", 0, 1000, false)

	ok := s.SetOutcome(Outcome{Tag: OutcomeSuccess, FileKept: true})
	assert.True(t, ok)
	assert.Equal(t, StateTerminated, s.State)
	assert.True(t, s.IsTerminal())

	ok = s.SetOutcome(Outcome{Tag: OutcomeError})
	assert.False(t, ok)
	assert.Equal(t, OutcomeSuccess, s.Outcome.Tag)
}

func TestProgressState_DiagnosticRingCap(t *testing.T) {
	var ps ProgressState
	for i := 0; i < 25; i++ {
		ps.AddDiagnostic(fmt.Sprintf("line %d", i))
	}

	assert.Len(t, ps.Diagnostics, DiagnosticCap)
	// Oldest entries dropped first
	assert.Equal(t, "line 15", ps.Diagnostics[0])
	assert.Equal(t, "line 24", ps.Diagnostics[len(ps.Diagnostics)-1])
}
