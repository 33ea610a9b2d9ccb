package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// mp4Head is the start of an ISO base media file: size box + ftyp
var mp4Head = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00,
	'i', 's', 'o', 'm', 'i', 's', 'o', '2',
}

func TestProbeArtifact(t *testing.T) {
	dir := t.TempDir()

	t.Run("mp4 header", func(t *testing.T) {
		path := writeFile(t, dir, "clip.mp4", mp4Head)
		assert.True(t, ProbeArtifact(path))
	})

	t.Run("mpegts sync bytes", func(t *testing.T) {
		data := make([]byte, 2*188)
		data[0] = 0x47
		data[188] = 0x47
		path := writeFile(t, dir, "clip.ts", data)
		assert.True(t, ProbeArtifact(path))
	})

	t.Run("zero-byte file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.mp4", nil)
		assert.False(t, ProbeArtifact(path))
	})

	t.Run("text junk", func(t *testing.T) {
		path := writeFile(t, dir, "error.mp4", []byte("404 Not Found\n"))
		assert.False(t, ProbeArtifact(path))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.False(t, ProbeArtifact(filepath.Join(dir, "nope.mp4")))
	})
}

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", []byte("12345"))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(dir), "directories are not regular files")
	assert.Equal(t, int64(5), FileSize(path))
	assert.Equal(t, int64(0), FileSize(filepath.Join(dir, "nope")))

	require.NoError(t, RemoveFile(path))
	assert.False(t, FileExists(path))
	// Removing an already-gone file is not an error
	assert.NoError(t, RemoveFile(path))
}

func TestDestinationChecks(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, CheckDirectory(dir))
	assert.Error(t, CheckDirectory(filepath.Join(dir, "nope")))

	file := writeFile(t, dir, "f.txt", []byte("x"))
	assert.Error(t, CheckDirectory(file))

	assert.NoError(t, CheckWritable(dir))

	free, err := FreeBytesAt(dir)
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))

	assert.NoError(t, CheckFreeSpace(dir, 1))
	assert.Error(t, CheckFreeSpace(dir, free*1000))
}
