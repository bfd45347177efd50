package vm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/hostexec"
	"github.com/jbweber/winvm/internal/status"
)

// Controller runs lifecycle operations for one VM on one backend. It is
// not safe for concurrent use.
type Controller struct {
	desc    *config.Descriptor
	adapter backend.Adapter
	storage Storage
	status  *status.Status
	logger  *slog.Logger

	settleDelay time.Duration
	stateMode   string
	assumed     *status.Phase
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSettleDelay sets how long Delete waits after stopping a running VM
// before removing it.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) { c.settleDelay = d }
}

// WithStateMode selects config.StateModeQuery or config.StateModeCached.
func WithStateMode(mode string) Option {
	return func(c *Controller) { c.stateMode = mode }
}

// WithAssumedState starts the controller in phase p without asking the
// backend, and keeps it from asking later.
func WithAssumedState(p status.Phase) Option {
	return func(c *Controller) { c.assumed = &p }
}

// WithDisk sets the storage used for the VM directory.
func WithDisk(s Storage) Option {
	return func(c *Controller) { c.storage = s }
}

func newController(d *config.Descriptor, opts ...Option) *Controller {
	c := &Controller{
		desc:        d,
		status:      status.New(),
		logger:      slog.Default(),
		settleDelay: config.DefaultSettleDelay,
		stateMode:   config.StateModeQuery,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.assumed != nil {
		c.stateMode = config.StateModeCached
	}
	c.logger = c.logger.With("component", "vm", "vm", d.Name)
	if err := d.ApplyDefaults(); err != nil {
		c.logger.Warn("cannot default storage directory", "error", err)
	}
	return c
}

// New returns a controller for d driven by adapter. An empty
// d.StorageDir is set to <home>/VirtualMachines/<name>. In the query state
// mode it asks the adapter for the VM's current power state.
func New(ctx context.Context, d *config.Descriptor, adapter backend.Adapter, opts ...Option) *Controller {
	c := newController(d, opts...)
	c.adapter = adapter
	if c.storage == nil {
		c.storage = disk.NewManager(nil, "")
	}
	c.init(ctx)
	return c
}

// Open resolves the backend from settings (detecting it from host when set
// to auto) and returns a controller for d. A host without a Runner runs
// commands on the local machine. An unknown configured backend is the only
// error.
func Open(ctx context.Context, d *config.Descriptor, s *config.Settings, host backend.Host, opts ...Option) (*Controller, error) {
	if s == nil {
		s = config.Defaults()
	}

	defaults := []Option{WithSettleDelay(s.SettleDelay), WithStateMode(s.StateMode)}
	c := newController(d, append(defaults, opts...)...)

	if host.Runner == nil {
		host.Runner = hostexec.NewExec(c.logger)
	}
	if host.PowerShell == "" {
		host.PowerShell = s.PowerShell
	}

	kind, err := backend.Resolve(ctx, s.Backend, host)
	if err != nil {
		return nil, err
	}
	c.logger = c.logger.With("backend", string(kind))

	mgr := disk.NewManager(host.Runner, s.QEMU.ImgBinary)
	if c.storage == nil {
		c.storage = mgr
	}

	adapter, err := backend.New(kind, backend.Deps{
		Runner:   host.Runner,
		Disk:     mgr,
		Settings: s,
		Logger:   c.logger,
	})
	if err != nil {
		return nil, err
	}
	c.adapter = adapter

	c.init(ctx)
	return c, nil
}

func (c *Controller) init(ctx context.Context) {
	if c.assumed != nil {
		status.Observe(c.status, *c.assumed, "Assumed")
		return
	}
	if c.stateMode == config.StateModeQuery {
		c.refresh(ctx, c.logger)
	}
}

// refresh replaces the cached phase with the backend's answer. An error or
// an unknown state leaves the cached phase alone.
func (c *Controller) refresh(ctx context.Context, logger *slog.Logger) {
	if c.stateMode != config.StateModeQuery {
		return
	}

	state, err := c.adapter.State(ctx, c.desc)
	if err != nil {
		logger.Debug("could not query power state, keeping cached phase", "phase", c.status.Phase, "error", err)
		return
	}

	switch state {
	case backend.PowerRunning:
		status.Observe(c.status, status.PhaseRunning, "BackendReported")
	case backend.PowerStopped:
		status.Observe(c.status, status.PhaseStopped, "BackendReported")
	default:
		logger.Debug("backend reported unknown power state, keeping cached phase", "phase", c.status.Phase)
	}
}

// Phase returns the controller's current view of the VM's run state.
func (c *Controller) Phase() status.Phase {
	return c.status.Phase
}

// Status returns a copy of the controller's run state.
func (c *Controller) Status() status.Status {
	return *c.status
}

// Kind returns the backend driving the VM.
func (c *Controller) Kind() backend.Kind {
	return c.adapter.Kind()
}

// Descriptor returns the VM's descriptor.
func (c *Controller) Descriptor() *config.Descriptor {
	return c.desc
}

// DiskPath returns the VM's backend-native disk artifact.
func (c *Controller) DiskPath() string {
	return c.adapter.DiskPath(c.desc)
}

// PowerState asks the backend for the VM's power state without touching
// the cached phase.
func (c *Controller) PowerState(ctx context.Context) (backend.PowerState, error) {
	return c.adapter.State(ctx, c.desc)
}

// begin allocates an operation ID and a logger carrying it.
func (c *Controller) begin(op string) (string, *slog.Logger) {
	id := uuid.NewString()
	return id, c.logger.With("operation", op, "operation_id", id)
}

func (c *Controller) fail(id string, logger *slog.Logger, action string, err error) Result {
	logger.Error("operation failed", "error", err)
	return Result{
		OK:          false,
		Message:     fmt.Sprintf("Failed to %s VM '%s': %v", action, c.desc.Name, err),
		Err:         err,
		OperationID: id,
	}
}

func (c *Controller) succeed(id string, logger *slog.Logger, msg string) Result {
	logger.Info(msg)
	return Result{OK: true, Message: msg, OperationID: id}
}
