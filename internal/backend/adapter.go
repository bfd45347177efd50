package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/hostexec"
)

// PowerState is the run state a backend reports for a VM.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerRunning
	PowerStopped
)

func (p PowerState) String() string {
	switch p {
	case PowerRunning:
		return "running"
	case PowerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Adapter performs lifecycle actions for one backend. Implementations hold
// no per-VM state; everything they need comes from the descriptor.
type Adapter interface {
	// Kind returns the backend this adapter drives.
	Kind() Kind

	// DiskPath returns the backend-native disk artifact for d.
	DiskPath(d *config.Descriptor) string

	// Create allocates the VM's disk and registers the VM with the backend.
	Create(ctx context.Context, d *config.Descriptor) error

	// Start boots the VM. isoPath, when non-empty, is the installer to
	// attach.
	Start(ctx context.Context, d *config.Descriptor, isoPath string) error

	// Stop asks the VM to shut down.
	Stop(ctx context.Context, d *config.Descriptor) error

	// Delete unregisters the VM and removes its disk. Deleting a VM that
	// does not exist succeeds.
	Delete(ctx context.Context, d *config.Descriptor) error

	// State asks the backend whether the VM is running.
	State(ctx context.Context, d *config.Descriptor) (PowerState, error)
}

// Deps are the collaborators shared by every adapter. Zero fields are
// filled with production defaults by New.
type Deps struct {
	Runner   hostexec.Runner
	Disk     *disk.Manager
	Settings *config.Settings
	Logger   *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Settings == nil {
		d.Settings = config.Defaults()
	}
	if d.Runner == nil {
		d.Runner = hostexec.NewExec(d.Logger)
	}
	if d.Disk == nil {
		d.Disk = disk.NewManager(d.Runner, d.Settings.QEMU.ImgBinary)
	}
	return d
}

// New returns the adapter for kind.
func New(kind Kind, deps Deps) (Adapter, error) {
	deps = deps.withDefaults()
	logger := deps.Logger.With("component", "backend", "backend", string(kind))

	switch kind {
	case KindKVM:
		return &kvmAdapter{runner: deps.Runner, disk: deps.Disk, settings: deps.Settings, logger: logger}, nil
	case KindHyperV:
		return &hypervAdapter{runner: deps.Runner, disk: deps.Disk, settings: deps.Settings, logger: logger}, nil
	case KindVirtualBox:
		return &vboxAdapter{runner: deps.Runner, disk: deps.Disk, settings: deps.Settings, logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, kind)
	}
}

// run executes a backend command and converts a non-zero exit into a
// *CommandError. notFound, if set, flags output that means the VM does not
// exist.
func run(ctx context.Context, r hostexec.Runner, notFound func(string) bool, name string, args ...string) (hostexec.Result, error) {
	res, err := r.Run(ctx, name, args...)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrBackendCommand, err)
	}
	if !res.Success() {
		out := res.Output()
		return res, &CommandError{
			Command:  hostexec.FormatCmd(name, args...),
			ExitCode: res.ExitCode,
			Output:   out,
			notFound: notFound != nil && notFound(out),
		}
	}
	return res, nil
}
