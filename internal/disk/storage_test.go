package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/winvm/internal/hostexec"
	"github.com/jbweber/winvm/internal/hostexec/hostexectest"
)

func TestEnsureDir(t *testing.T) {
	mgr := NewManager(&hostexectest.Runner{}, "")
	dir := filepath.Join(t.TempDir(), "VirtualMachines", "Win11Test")

	require.NoError(t, mgr.EnsureDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent
	require.NoError(t, mgr.EnsureDir(dir))
}

func TestEnsureDirOverFile(t *testing.T) {
	mgr := NewManager(&hostexectest.Runner{}, "")
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, FilePermissions))

	err := mgr.EnsureDir(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create VM directory")
}

func TestCreateQCOW2(t *testing.T) {
	runner := &hostexectest.Runner{}
	mgr := NewManager(runner, "/usr/bin/qemu-img")

	require.NoError(t, mgr.CreateQCOW2(context.Background(), "/vms/a/a.qcow2", "50G"))

	require.Len(t, runner.RunCalls, 1)
	assert.Equal(t, "/usr/bin/qemu-img create -f qcow2 /vms/a/a.qcow2 50G", runner.RunCalls[0].String())
}

func TestCreateQCOW2Failures(t *testing.T) {
	tests := []struct {
		name    string
		runFunc func(string, []string) (hostexec.Result, error)
		wantErr string
	}{
		{
			name: "non-zero exit",
			runFunc: func(string, []string) (hostexec.Result, error) {
				return hostexectest.Exit(1, "Could not create file: Permission denied"), nil
			},
			wantErr: "Permission denied",
		},
		{
			name: "binary missing",
			runFunc: func(string, []string) (hostexec.Result, error) {
				return hostexec.Result{}, errors.New("executable file not found in $PATH")
			},
			wantErr: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(&hostexectest.Runner{RunFunc: tt.runFunc}, "")
			err := mgr.CreateQCOW2(context.Background(), "/vms/a/a.qcow2", "50G")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRemoveFile(t *testing.T) {
	mgr := NewManager(&hostexectest.Runner{}, "")
	path := filepath.Join(t.TempDir(), "a.qcow2")
	require.NoError(t, os.WriteFile(path, []byte("disk"), FilePermissions))

	removed, err := mgr.RemoveFile(path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = mgr.RemoveFile(path)
	require.NoError(t, err, "removing a missing file must succeed")
	assert.False(t, removed)
}

func TestRemoveDir(t *testing.T) {
	mgr := NewManager(&hostexectest.Runner{}, "")
	root := t.TempDir()

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.Mkdir(empty, DirPermissions))
	require.NoError(t, mgr.RemoveDir(empty))
	assert.NoDirExists(t, empty)

	full := filepath.Join(root, "full")
	require.NoError(t, os.Mkdir(full, DirPermissions))
	require.NoError(t, os.WriteFile(filepath.Join(full, "x"), nil, FilePermissions))
	assert.Error(t, mgr.RemoveDir(full), "non-empty directory must not be removed")
	assert.DirExists(t, full)

	assert.Error(t, mgr.RemoveDir(filepath.Join(root, "missing")))
}

func TestUsage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.qcow2")

	u, err := Usage(path)
	require.NoError(t, err)
	assert.False(t, u.Exists)
	assert.Zero(t, u.Size)
	assert.True(t, u.ModTime.IsZero())

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(3<<20))
	require.NoError(t, f.Close())

	u, err = Usage(path)
	require.NoError(t, err)
	assert.True(t, u.Exists)
	assert.Equal(t, int64(3<<20), u.Size)
	assert.WithinDuration(t, time.Now(), u.ModTime, time.Minute)
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	free, err := FreeBytes(dir)
	if errors.Is(err, errors.ErrUnsupported) {
		t.Skip("free space not supported on this platform")
	}
	require.NoError(t, err)
	assert.Positive(t, free)

	assert.NoError(t, CheckDiskSpace(dir, 1))

	err = CheckDiskSpace(dir, ^uint64(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient disk space")
}
