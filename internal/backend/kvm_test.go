package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/hostexec"
	"github.com/jbweber/winvm/internal/hostexec/hostexectest"
)

// makeSparseDisk creates the VM directory and a sparse disk image of size
// bytes at the adapter's disk path.
func makeSparseDisk(t *testing.T, a Adapter, d *config.Descriptor, size int64) {
	t.Helper()

	require.NoError(t, os.MkdirAll(d.StorageDir, 0o755))
	f, err := os.Create(a.DiskPath(d))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
}

func TestKVMCreate(t *testing.T) {
	runner := &hostexectest.Runner{}
	a := newTestAdapter(t, KindKVM, runner, nil)
	d := testVM(t)

	require.NoError(t, a.Create(context.Background(), d))

	require.Len(t, runner.RunCalls, 1)
	assert.Equal(t,
		[]string{"create", "-f", "qcow2", filepath.Join(d.StorageDir, "Win11Test.qcow2"), "50G"},
		runner.RunCalls[0].Args)
	assert.Equal(t, "qemu-img", runner.RunCalls[0].Name)
}

func TestKVMCreateFailure(t *testing.T) {
	runner := &hostexectest.Runner{RunFunc: func(string, []string) (hostexec.Result, error) {
		return hostexectest.Exit(1, "qemu-img: Could not create: No space left on device"), nil
	}}
	a := newTestAdapter(t, KindKVM, runner, nil)

	err := a.Create(context.Background(), testVM(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiskAllocation)
	assert.Contains(t, err.Error(), "No space left on device")
}

func TestKVMStartArgs(t *testing.T) {
	tests := []struct {
		name     string
		diskSize int64
		iso      bool
		wantBoot bool
		wantISO  bool
	}{
		{name: "fresh disk with ISO boots from CD", diskSize: 196_624, iso: true, wantBoot: true, wantISO: true},
		{name: "just below threshold boots from CD", diskSize: 999_999_999, iso: true, wantBoot: true, wantISO: true},
		{name: "at threshold boots from disk", diskSize: 1_000_000_000, iso: true, wantISO: true},
		{name: "installed disk keeps ISO attached", diskSize: 20_000_000_000, iso: true, wantISO: true},
		{name: "no ISO", diskSize: 196_624},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &hostexectest.Runner{}
			a := newTestAdapter(t, KindKVM, runner, nil)
			d := testVM(t)
			makeSparseDisk(t, a, d, tt.diskSize)

			iso := ""
			if tt.iso {
				iso = d.ISOPath
			}
			require.NoError(t, a.Start(context.Background(), d, iso))

			require.Len(t, runner.StartCalls, 1)
			spec := runner.StartCalls[0]
			assert.Equal(t, "qemu-system-x86_64", spec.Name)
			assert.Equal(t, d.LogPath(), spec.LogPath)

			cmdline := strings.Join(spec.Args, " ")
			assert.Contains(t, cmdline, "-enable-kvm -m 4096 -smp cores=2,threads=2 -cpu host")
			assert.Contains(t, cmdline, "-drive file="+a.DiskPath(d)+",format=qcow2,if=virtio")
			assert.Contains(t, cmdline, "-display gtk,grab-on-hover=on -vga virtio")
			assert.Contains(t, cmdline, "-device virtio-net,netdev=net0 -netdev user,id=net0 -usb -device usb-tablet")
			assert.Equal(t, tt.wantISO, strings.Contains(cmdline, "-cdrom "+d.ISOPath))
			assert.Equal(t, tt.wantBoot, strings.Contains(cmdline, "-boot d"))
		})
	}
}

func TestKVMStartUsesSettings(t *testing.T) {
	runner := &hostexectest.Runner{}
	a := newTestAdapter(t, KindKVM, runner, func(s *config.Settings) {
		s.QEMU.SystemBinary = "/usr/libexec/qemu-kvm"
		s.QEMU.Display = "none"
		s.QEMU.Cores = 4
		s.QEMU.Threads = 1
	})
	d := testVM(t)
	makeSparseDisk(t, a, d, 1024)

	require.NoError(t, a.Start(context.Background(), d, ""))

	spec := runner.StartCalls[0]
	assert.Equal(t, "/usr/libexec/qemu-kvm", spec.Name)
	cmdline := strings.Join(spec.Args, " ")
	assert.Contains(t, cmdline, "-smp cores=4,threads=1")
	assert.Contains(t, cmdline, "-display none")
}

func TestKVMStartMissingDisk(t *testing.T) {
	runner := &hostexectest.Runner{}
	a := newTestAdapter(t, KindKVM, runner, nil)

	err := a.Start(context.Background(), testVM(t), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, runner.StartCalls, "nothing may be launched without a disk")
}

func TestKVMStartExitsImmediately(t *testing.T) {
	d := testVM(t)
	runner := &hostexectest.Runner{StartFunc: func(spec hostexec.StartSpec) (hostexec.Process, error) {
		require.NoError(t, os.WriteFile(spec.LogPath,
			[]byte("qemu-system-x86_64: failed to initialize kvm: Permission denied\n"), 0o644))
		return &hostexectest.Process{Exited: true, ExitErr: errors.New("exit status 1")}, nil
	}}
	a := newTestAdapter(t, KindKVM, runner, nil)
	makeSparseDisk(t, a, d, 1024)

	err := a.Start(context.Background(), d, d.ISOPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunch)
	assert.Contains(t, err.Error(), "exited immediately")
	assert.Contains(t, err.Error(), "failed to initialize kvm: Permission denied")
}

func TestKVMStartSpawnFailure(t *testing.T) {
	runner := &hostexectest.Runner{StartFunc: func(hostexec.StartSpec) (hostexec.Process, error) {
		return nil, errors.New(`exec: "qemu-system-x86_64": executable file not found in $PATH`)
	}}
	a := newTestAdapter(t, KindKVM, runner, nil)
	d := testVM(t)
	makeSparseDisk(t, a, d, 1024)

	err := a.Start(context.Background(), d, "")
	assert.ErrorIs(t, err, ErrLaunch)
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestKVMStop(t *testing.T) {
	for _, code := range []int{0, 1, 3} {
		runner := &hostexectest.Runner{RunFunc: func(string, []string) (hostexec.Result, error) {
			return hostexectest.Exit(code, ""), nil
		}}
		a := newTestAdapter(t, KindKVM, runner, nil)
		d := testVM(t)

		assert.NoError(t, a.Stop(context.Background(), d), "pkill exit %d must not fail stop", code)

		require.Len(t, runner.RunCalls, 1)
		call := runner.RunCalls[0]
		assert.Equal(t, "pkill", call.Name)
		require.Len(t, call.Args, 2)
		assert.Equal(t, "-f", call.Args[0])
		assert.True(t, strings.HasPrefix(call.Args[1], "qemu-system-x86_64.*"),
			"pattern %q should start with the QEMU binary", call.Args[1])
		assert.True(t, strings.HasSuffix(call.Args[1], `Win11Test\.qcow2`),
			"pattern %q should end with the quoted disk path", call.Args[1])
	}
}

func TestKVMStopPkillMissing(t *testing.T) {
	runner := &hostexectest.Runner{RunFunc: func(string, []string) (hostexec.Result, error) {
		return hostexec.Result{}, errors.New("executable file not found")
	}}
	a := newTestAdapter(t, KindKVM, runner, nil)

	assert.ErrorIs(t, a.Stop(context.Background(), testVM(t)), ErrBackendCommand)
}

func TestKVMState(t *testing.T) {
	tests := []struct {
		code    int
		want    PowerState
		wantErr bool
	}{
		{code: 0, want: PowerRunning},
		{code: 1, want: PowerStopped},
		{code: 2, want: PowerUnknown, wantErr: true},
	}

	for _, tt := range tests {
		runner := &hostexectest.Runner{RunFunc: func(string, []string) (hostexec.Result, error) {
			return hostexectest.Exit(tt.code, ""), nil
		}}
		a := newTestAdapter(t, KindKVM, runner, nil)

		got, err := a.State(context.Background(), testVM(t))
		assert.Equal(t, tt.wantErr, err != nil, "exit %d", tt.code)
		assert.Equal(t, tt.want, got, "exit %d", tt.code)
		assert.Equal(t, "pgrep", runner.RunCalls[0].Name)
	}
}

func TestKVMDeleteIdempotent(t *testing.T) {
	runner := &hostexectest.Runner{}
	a := newTestAdapter(t, KindKVM, runner, nil)
	d := testVM(t)
	makeSparseDisk(t, a, d, 1024)
	require.NoError(t, os.WriteFile(d.LogPath(), []byte("log"), 0o644))

	require.NoError(t, a.Delete(context.Background(), d))
	assert.NoFileExists(t, a.DiskPath(d))
	assert.NoFileExists(t, d.LogPath())

	require.NoError(t, a.Delete(context.Background(), d), "second delete must succeed")
	assert.Empty(t, runner.RunCalls, "KVM delete only touches files")
}
