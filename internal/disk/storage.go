// Package disk manages the files a VM owns under its storage directory:
// the directory itself, the disk image and the launch log.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jbweber/winvm/internal/hostexec"
)

const (
	// DirPermissions are the permissions for VM directories
	DirPermissions = 0o755

	// FilePermissions are the permissions for VM files created directly
	FilePermissions = 0o644
)

// Manager handles storage operations for VMs.
type Manager struct {
	runner  hostexec.Runner
	qemuImg string
}

// NewManager creates a storage manager that creates QEMU images with the
// given qemu-img binary.
func NewManager(runner hostexec.Runner, qemuImg string) *Manager {
	if qemuImg == "" {
		qemuImg = "qemu-img"
	}
	return &Manager{runner: runner, qemuImg: qemuImg}
}

// EnsureDir creates dir and any missing parents. An existing directory is
// not an error.
func (m *Manager) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create VM directory %s: %w", dir, err)
	}
	return nil
}

// CreateQCOW2 creates an empty qcow2 image at path. size is passed to
// qemu-img verbatim (e.g. "50G").
func (m *Manager) CreateQCOW2(ctx context.Context, path, size string) error {
	res, err := m.runner.Run(ctx, m.qemuImg, "create", "-f", "qcow2", path, size)
	if err != nil {
		return fmt.Errorf("failed to create disk %s: %w", path, err)
	}
	if !res.Success() {
		return fmt.Errorf("failed to create disk %s: %s exited %d\nOutput: %s",
			path, m.qemuImg, res.ExitCode, res.Output())
	}
	return nil
}

// RemoveFile deletes path. A file that is already gone is not an error;
// removed reports whether anything was deleted.
func (m *Manager) RemoveFile(path string) (removed bool, err error) {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return true, nil
}

// RemoveDir removes dir only if it is empty. Callers treat failure as a
// leftover to report, not as a failed operation.
func (m *Manager) RemoveDir(dir string) error {
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("failed to remove VM directory %s: %w", dir, err)
	}
	return nil
}

// FileUsage describes a VM file on disk.
type FileUsage struct {
	Exists  bool
	Size    int64
	ModTime time.Time
}

// Usage reports whether the file at path exists, its size and when it was
// last written.
func Usage(path string) (FileUsage, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return FileUsage{}, nil
	}
	if err != nil {
		return FileUsage{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return FileUsage{Exists: true, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// CheckDiskSpace verifies that dir's filesystem has at least need bytes
// available.
func CheckDiskSpace(dir string, need uint64) error {
	available, err := FreeBytes(dir)
	if err != nil {
		return err
	}
	if need > available {
		return fmt.Errorf("insufficient disk space: need %d bytes, have %d available", need, available)
	}
	return nil
}
