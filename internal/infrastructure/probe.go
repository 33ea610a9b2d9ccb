package infrastructure

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/h2non/filetype"
)

// FileExists checks if a path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FileSize returns the file size, 0 if it cannot be read
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// RemoveFile deletes a produced artifact, ignoring a file that is already
// gone.
func RemoveFile(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ProbeArtifact checks whether the output file exists and is structurally a
// media container, by matching its magic header. Size heuristics are
// deliberately not used: a short but well-formed partial file is valid.
func ProbeArtifact(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false
	}
	head = head[:n]

	if filetype.IsVideo(head) || filetype.IsAudio(head) {
		return true
	}
	// MPEG-TS segments have no header filetype knows; a 0x47 sync byte at
	// the packet boundary is the container's own framing.
	if len(head) >= 189 && head[0] == 0x47 && head[188] == 0x47 {
		return true
	}
	return false
}

// FreeBytesAt reports the free space available to the caller on the volume
// holding path.
func FreeBytesAt(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat volume: %w", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckDirectory verifies the destination directory exists
func CheckDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("destination directory inaccessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", dir)
	}
	return nil
}

// CheckWritable verifies the caller can create files in dir
func CheckWritable(dir string) error {
	probe, err := os.CreateTemp(dir, ".medialink-probe-*")
	if err != nil {
		return fmt.Errorf("destination not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// CheckFreeSpace verifies the volume holding dir has at least minFreeBytes
// available. Run before any process is spawned.
func CheckFreeSpace(dir string, minFreeBytes uint64) error {
	free, err := FreeBytesAt(dir)
	if err != nil {
		return err
	}
	if free < minFreeBytes {
		return fmt.Errorf("insufficient free space: %d bytes available", free)
	}
	return nil
}
