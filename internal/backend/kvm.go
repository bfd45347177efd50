package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/hostexec"
)

// BootFromISOThreshold is the disk size below which a start with an ISO
// attached boots from the CD-ROM. A smaller image is assumed not to hold an
// installed OS yet.
const BootFromISOThreshold = 1_000_000_000

// BootsFromISO reports whether a disk of the given size should boot from
// an attached ISO.
func BootsFromISO(diskSize int64) bool {
	return diskSize < BootFromISOThreshold
}

// launchLogTail bounds how much of the launch log is quoted in an error.
const launchLogTail = 4096

type kvmAdapter struct {
	runner   hostexec.Runner
	disk     *disk.Manager
	settings *config.Settings
	logger   *slog.Logger
}

func (a *kvmAdapter) Kind() Kind { return KindKVM }

func (a *kvmAdapter) DiskPath(d *config.Descriptor) string {
	return d.DiskPathFor(KindKVM.DiskFormat())
}

func (a *kvmAdapter) Create(ctx context.Context, d *config.Descriptor) error {
	path := a.DiskPath(d)
	a.logger.Info("creating disk image", "vm", d.Name, "path", path, "size", d.DiskSize)

	if err := a.disk.CreateQCOW2(ctx, path, d.DiskSize); err != nil {
		return fmt.Errorf("%w: %w", ErrDiskAllocation, err)
	}
	return nil
}

func (a *kvmAdapter) Start(ctx context.Context, d *config.Descriptor, isoPath string) error {
	diskPath := a.DiskPath(d)
	info, err := os.Stat(diskPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: disk image %s", ErrNotFound, diskPath)
	}
	if err != nil {
		return fmt.Errorf("failed to check disk image %s: %w", diskPath, err)
	}

	args := a.startArgs(d, diskPath, isoPath, info.Size())
	a.logger.Info("launching VM", "vm", d.Name, "cmd", hostexec.FormatCmd(a.settings.QEMU.SystemBinary, args...))

	proc, err := a.runner.Start(ctx, hostexec.StartSpec{
		Name:    a.settings.QEMU.SystemBinary,
		Args:    args,
		LogPath: d.LogPath(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	exited, waitErr := proc.WaitFor(a.settings.LaunchWatch)
	if !exited {
		a.logger.Info("VM process running", "vm", d.Name, "pid", proc.Pid())
		return nil
	}

	msg := fmt.Sprintf("%s exited immediately", filepath.Base(a.settings.QEMU.SystemBinary))
	if waitErr != nil {
		msg += ": " + waitErr.Error()
	}
	if tail := readTail(d.LogPath(), launchLogTail); tail != "" {
		msg += "\n" + tail
	}
	return fmt.Errorf("%w: %s", ErrLaunch, msg)
}

// startArgs builds the qemu-system command line. The CD-ROM is attached
// whenever an ISO is given, but only boots first while the disk is still
// smaller than BootFromISOThreshold.
func (a *kvmAdapter) startArgs(d *config.Descriptor, diskPath, isoPath string, diskSize int64) []string {
	q := a.settings.QEMU
	args := []string{
		"-enable-kvm",
		"-m", strconv.Itoa(d.MemoryMB),
		"-smp", fmt.Sprintf("cores=%d,threads=%d", q.Cores, q.Threads),
		"-cpu", "host",
		"-drive", fmt.Sprintf("file=%s,format=qcow2,if=virtio", diskPath),
	}

	if isoPath != "" {
		args = append(args, "-cdrom", isoPath)
		if BootsFromISO(diskSize) {
			args = append(args, "-boot", "d")
		}
	}

	args = append(args,
		"-display", q.Display,
		"-vga", "virtio",
		"-device", "virtio-net,netdev=net0",
		"-netdev", "user,id=net0",
		"-usb",
		"-device", "usb-tablet",
	)
	return args
}

// processPattern matches the command line of the QEMU process using d's
// disk, for pkill/pgrep -f.
func (a *kvmAdapter) processPattern(d *config.Descriptor) string {
	bin := filepath.Base(a.settings.QEMU.SystemBinary)
	return regexp.QuoteMeta(bin) + ".*" + regexp.QuoteMeta(a.DiskPath(d))
}

// Stop signals the VM's QEMU process with pkill's default SIGTERM. Whether
// or not a process matched, the outcome is only logged.
func (a *kvmAdapter) Stop(ctx context.Context, d *config.Descriptor) error {
	pattern := a.processPattern(d)
	res, err := a.runner.Run(ctx, "pkill", "-f", pattern)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendCommand, err)
	}

	switch res.ExitCode {
	case 0:
		a.logger.Info("signalled VM process", "vm", d.Name)
	case 1:
		a.logger.Info("no VM process matched", "vm", d.Name, "pattern", pattern)
	default:
		a.logger.Warn("pkill failed", "vm", d.Name, "exit_code", res.ExitCode, "output", res.Output())
	}
	return nil
}

// Delete removes the disk image and launch log. Missing files are fine.
func (a *kvmAdapter) Delete(_ context.Context, d *config.Descriptor) error {
	for _, path := range []string{a.DiskPath(d), d.LogPath()} {
		removed, err := a.disk.RemoveFile(path)
		if err != nil {
			return err
		}
		if removed {
			a.logger.Info("removed file", "vm", d.Name, "path", path)
		}
	}
	return nil
}

func (a *kvmAdapter) State(ctx context.Context, d *config.Descriptor) (PowerState, error) {
	res, err := a.runner.Run(ctx, "pgrep", "-f", a.processPattern(d))
	if err != nil {
		return PowerUnknown, fmt.Errorf("%w: %w", ErrBackendCommand, err)
	}

	switch res.ExitCode {
	case 0:
		return PowerRunning, nil
	case 1:
		return PowerStopped, nil
	default:
		return PowerUnknown, &CommandError{
			Command:  hostexec.FormatCmd("pgrep", "-f", a.processPattern(d)),
			ExitCode: res.ExitCode,
			Output:   res.Output(),
		}
	}
}

// readTail returns up to limit trailing bytes of the file at path, or "" if
// it cannot be read.
func readTail(path string, limit int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := info.Size() - limit
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}
