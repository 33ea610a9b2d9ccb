package infrastructure

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitExit(t *testing.T, p *Process) ExitStatus {
	t.Helper()
	select {
	case status := <-p.Exit():
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
		return ExitStatus{}
	}
}

func TestSupervisor_CleanExit(t *testing.T) {
	s := NewSupervisor(zap.NewNop())

	p, err := s.Start("sh", []string{"-c", "echo telemetry >&2; exit 0"}, nil)
	require.NoError(t, err)
	require.Greater(t, p.PID(), 0)

	out, err := io.ReadAll(p.Stderr())
	require.NoError(t, err)
	assert.Equal(t, "telemetry\n", string(out))
	p.ReadersDone()

	status := waitExit(t, p)
	assert.True(t, status.Completed())
	assert.True(t, p.Exited())
	assert.Equal(t, 0, s.ActiveCount())
}

func TestSupervisor_ReapWaitsForReaders(t *testing.T) {
	s := NewSupervisor(zap.NewNop())

	// The child writes its final burst right before dying. The exit status
	// must not be delivered while the streams are still unread, and the
	// burst must survive intact.
	p, err := s.Start("sh", []string{"-c", "printf 'size=    9kB time=00:00:09.00' >&2; exit 0"}, nil)
	require.NoError(t, err)

	select {
	case <-p.Exit():
		t.Fatal("exit status delivered before the streams were drained")
	case <-time.After(150 * time.Millisecond):
	}

	out, err := io.ReadAll(p.Stderr())
	require.NoError(t, err)
	assert.Equal(t, "size=    9kB time=00:00:09.00", string(out))

	p.ReadersDone()
	p.ReadersDone() // idempotent
	status := waitExit(t, p)
	assert.True(t, status.Completed())
}

func TestSupervisor_NonzeroExit(t *testing.T) {
	s := NewSupervisor(zap.NewNop())

	p, err := s.Start("sh", []string{"-c", "exit 8"}, nil)
	require.NoError(t, err)
	p.ReadersDone()

	status := waitExit(t, p)
	assert.False(t, status.Completed())
	assert.False(t, status.Signaled)
	assert.Equal(t, 8, status.Code)
}

func TestSupervisor_SpawnError(t *testing.T) {
	s := NewSupervisor(zap.NewNop())

	_, err := s.Start("/nonexistent/binary", nil, nil)
	require.Error(t, err)
	assert.False(t, IsTransientSpawnError(err))
	assert.Equal(t, 0, s.ActiveCount())
}

func TestSupervisor_SignalTermination(t *testing.T) {
	s := NewSupervisor(zap.NewNop())

	p, err := s.Start("sleep", []string{"30"}, nil)
	require.NoError(t, err)
	p.ReadersDone()
	require.NoError(t, p.Signal(syscall.SIGTERM))

	status := waitExit(t, p)
	assert.True(t, status.Signaled)
	assert.Equal(t, -1, status.Code)

	// Signaling after exit is a no-op, not an error
	assert.NoError(t, p.Signal(syscall.SIGTERM))
	assert.NoError(t, p.Kill())
}

func TestSupervisor_WriteControl(t *testing.T) {
	s := NewSupervisor(zap.NewNop())

	// The shell exits as soon as one line lands on its stdin
	p, err := s.Start("sh", []string{"-c", "read line; exit 0"}, nil)
	require.NoError(t, err)
	p.ReadersDone()

	require.NoError(t, p.WriteControl("q\n"))
	status := waitExit(t, p)
	assert.True(t, status.Completed())

	assert.Error(t, p.WriteControl("q\n"), "control channel is dead after exit")
}

func TestSupervisor_ShutdownAll(t *testing.T) {
	s := NewSupervisor(zap.NewNop())

	p1, err := s.Start("sleep", []string{"30"}, nil)
	require.NoError(t, err)
	p2, err := s.Start("sleep", []string{"30"}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, s.ActiveCount())
	p1.ReadersDone()
	p2.ReadersDone()

	s.ShutdownAll()

	st1, st2 := waitExit(t, p1), waitExit(t, p2)
	assert.True(t, st1.Signaled)
	assert.True(t, st2.Signaled)

	// Spawns are refused after shutdown
	_, err = s.Start("sleep", []string{"1"}, nil)
	assert.Error(t, err)

	// Second shutdown is a no-op
	s.ShutdownAll()
}

func TestIsTransientSpawnError(t *testing.T) {
	assert.True(t, IsTransientSpawnError(fmt.Errorf("fork/exec: %w", syscall.EAGAIN)))
	assert.True(t, IsTransientSpawnError(fmt.Errorf("fork/exec: %w", syscall.ETXTBSY)))
	assert.False(t, IsTransientSpawnError(errors.New("permission denied")))
	assert.False(t, IsTransientSpawnError(fmt.Errorf("fork/exec: %w", syscall.ENOENT)))
}
