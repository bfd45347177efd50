package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/hostexec"
)

type hypervAdapter struct {
	runner   hostexec.Runner
	disk     *disk.Manager
	settings *config.Settings
	logger   *slog.Logger
}

func (a *hypervAdapter) Kind() Kind { return KindHyperV }

func (a *hypervAdapter) DiskPath(d *config.Descriptor) string {
	return d.DiskPathFor(KindHyperV.DiskFormat())
}

// psQuote returns s as a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func hypervNotFound(output string) bool {
	return strings.Contains(strings.ToLower(output), "unable to find a virtual machine")
}

// ps runs one PowerShell command line.
func (a *hypervAdapter) ps(ctx context.Context, command string) (hostexec.Result, error) {
	return run(ctx, a.runner, hypervNotFound,
		a.settings.PowerShell, "-NoProfile", "-NonInteractive", "-Command", command)
}

func (a *hypervAdapter) psStep(name, command string) Step {
	return Step{Name: name, Run: func(ctx context.Context) error {
		_, err := a.ps(ctx, command)
		return err
	}}
}

// Create defines a generation 2 VM, gives it a dynamic VHDX and the
// installer DVD, and makes the DVD the first boot device. Secure boot is
// turned off so unsigned installer media boots.
func (a *hypervAdapter) Create(ctx context.Context, d *config.Descriptor) error {
	size, err := d.DiskSizeBytes()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	name := psQuote(d.Name)
	vhd := psQuote(a.DiskPath(d))

	seq := Sequence{Operation: "create", Steps: []Step{
		a.psStep("new-vm", fmt.Sprintf("New-VM -Name %s -MemoryStartupBytes %dMB -Generation 2 -Path %s",
			name, d.MemoryMB, psQuote(d.StorageDir))),
		a.psStep("new-vhd", fmt.Sprintf("New-VHD -Path %s -SizeBytes %d -Dynamic", vhd, size)),
		a.psStep("attach-disk", fmt.Sprintf("Add-VMHardDiskDrive -VMName %s -Path %s", name, vhd)),
		a.psStep("attach-dvd", fmt.Sprintf("Add-VMDvdDrive -VMName %s -Path %s", name, psQuote(d.ISOPath))),
		a.psStep("disable-secure-boot", fmt.Sprintf("Set-VMFirmware -VMName %s -EnableSecureBoot Off", name)),
		a.psStep("boot-from-dvd", fmt.Sprintf("Set-VMFirmware -VMName %s -FirstBootDevice (Get-VMDvdDrive -VMName %s)", name, name)),
	}}
	return seq.Run(ctx, a.logger.With("vm", d.Name))
}

// Start boots the VM. The installer DVD was attached at create time, so
// isoPath is not used.
func (a *hypervAdapter) Start(ctx context.Context, d *config.Descriptor, isoPath string) error {
	if isoPath != "" && isoPath != d.ISOPath {
		a.logger.Debug("ignoring ISO override; DVD is attached at create", "vm", d.Name, "iso", isoPath)
	}
	_, err := a.ps(ctx, "Start-VM -Name "+psQuote(d.Name))
	return err
}

func (a *hypervAdapter) Stop(ctx context.Context, d *config.Descriptor) error {
	_, err := a.ps(ctx, "Stop-VM -Name "+psQuote(d.Name)+" -Force")
	return err
}

// Delete removes the VM registration and then its VHDX. A VM Hyper-V does
// not know about is treated as already removed.
func (a *hypervAdapter) Delete(ctx context.Context, d *config.Descriptor) error {
	_, err := a.ps(ctx, "Remove-VM -Name "+psQuote(d.Name)+" -Force")
	if errors.Is(err, ErrNotFound) {
		a.logger.Info("VM not registered with Hyper-V", "vm", d.Name)
	} else if err != nil {
		return err
	}

	if _, err := a.disk.RemoveFile(a.DiskPath(d)); err != nil {
		return err
	}
	return nil
}

func (a *hypervAdapter) State(ctx context.Context, d *config.Descriptor) (PowerState, error) {
	res, err := a.ps(ctx, "(Get-VM -Name "+psQuote(d.Name)+").State")
	if err != nil {
		return PowerUnknown, err
	}
	return parseHyperVState(res.Stdout), nil
}

// parseHyperVState maps a Microsoft.HyperV.PowerShell.VMState name.
func parseHyperVState(out string) PowerState {
	switch strings.ToLower(strings.TrimSpace(out)) {
	case "running":
		return PowerRunning
	case "off":
		return PowerStopped
	default:
		return PowerUnknown
	}
}
