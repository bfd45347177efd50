package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/hostexec"
	"github.com/jbweber/winvm/internal/naming"
)

const (
	vboxOSType  = "Windows10_64"
	vboxSATACtl = "SATA Controller"
	vboxIDECtl  = "IDE Controller"
)

type vboxAdapter struct {
	runner   hostexec.Runner
	disk     *disk.Manager
	settings *config.Settings
	logger   *slog.Logger
}

func (a *vboxAdapter) Kind() Kind { return KindVirtualBox }

func (a *vboxAdapter) DiskPath(d *config.Descriptor) string {
	return d.DiskPathFor(KindVirtualBox.DiskFormat())
}

func vboxNotFound(output string) bool {
	return strings.Contains(output, "Could not find a registered machine")
}

func (a *vboxAdapter) manage(ctx context.Context, args ...string) (hostexec.Result, error) {
	return run(ctx, a.runner, vboxNotFound, a.settings.VBoxManage, args...)
}

func (a *vboxAdapter) manageStep(name string, args ...string) Step {
	return Step{Name: name, Run: func(ctx context.Context) error {
		_, err := a.manage(ctx, args...)
		return err
	}}
}

// Create registers the VM, sizes it, creates its VDI and wires the disk to
// a SATA controller and the installer ISO to an IDE controller.
func (a *vboxAdapter) Create(ctx context.Context, d *config.Descriptor) error {
	sizeMiB, err := naming.SizeMiB(d.DiskSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	vdi := a.DiskPath(d)

	seq := Sequence{Operation: "create", Steps: []Step{
		a.manageStep("createvm", "createvm", "--name", d.Name, "--ostype", vboxOSType,
			"--register", "--basefolder", d.StorageDir),
		a.manageStep("modifyvm", "modifyvm", d.Name, "--memory", strconv.Itoa(d.MemoryMB),
			"--cpus", strconv.Itoa(d.VCPUs())),
		a.manageStep("createmedium", "createmedium", "disk", "--filename", vdi,
			"--size", strconv.FormatUint(sizeMiB, 10)),
		a.manageStep("add-sata", "storagectl", d.Name, "--name", vboxSATACtl, "--add", "sata"),
		a.manageStep("attach-disk", "storageattach", d.Name, "--storagectl", vboxSATACtl,
			"--port", "0", "--device", "0", "--type", "hdd", "--medium", vdi),
		a.manageStep("add-ide", "storagectl", d.Name, "--name", vboxIDECtl, "--add", "ide"),
		a.manageStep("attach-dvd", "storageattach", d.Name, "--storagectl", vboxIDECtl,
			"--port", "0", "--device", "0", "--type", "dvddrive", "--medium", d.ISOPath),
	}}
	return seq.Run(ctx, a.logger.With("vm", d.Name))
}

// Start boots the VM, headless if configured. The ISO was attached at
// create time.
func (a *vboxAdapter) Start(ctx context.Context, d *config.Descriptor, isoPath string) error {
	if isoPath != "" && isoPath != d.ISOPath {
		a.logger.Debug("ignoring ISO override; DVD is attached at create", "vm", d.Name, "iso", isoPath)
	}
	args := []string{"startvm", d.Name}
	if a.settings.Headless {
		args = append(args, "--type", "headless")
	}
	_, err := a.manage(ctx, args...)
	return err
}

// Stop presses the virtual ACPI power button; the guest shuts itself down.
func (a *vboxAdapter) Stop(ctx context.Context, d *config.Descriptor) error {
	_, err := a.manage(ctx, "controlvm", d.Name, "acpipowerbutton")
	return err
}

// Delete unregisters the VM and lets VirtualBox delete its files. A VM
// that is not registered is treated as already removed.
func (a *vboxAdapter) Delete(ctx context.Context, d *config.Descriptor) error {
	_, err := a.manage(ctx, "unregistervm", d.Name, "--delete")
	if errors.Is(err, ErrNotFound) {
		a.logger.Info("VM not registered with VirtualBox", "vm", d.Name)
	} else if err != nil {
		return err
	}

	if _, err := a.disk.RemoveFile(a.DiskPath(d)); err != nil {
		return err
	}
	return nil
}

func (a *vboxAdapter) State(ctx context.Context, d *config.Descriptor) (PowerState, error) {
	res, err := a.manage(ctx, "showvminfo", d.Name, "--machinereadable")
	if err != nil {
		return PowerUnknown, err
	}
	return parseVBoxState(res.Stdout), nil
}

// parseVBoxState reads the VMState key from showvminfo --machinereadable
// output.
func parseVBoxState(out string) PowerState {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || key != "VMState" {
			continue
		}
		switch strings.Trim(value, `"`) {
		case "running", "starting", "paused", "stopping":
			return PowerRunning
		case "poweroff", "aborted", "saved":
			return PowerStopped
		default:
			return PowerUnknown
		}
	}
	return PowerUnknown
}
