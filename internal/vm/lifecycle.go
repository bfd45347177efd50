package vm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/status"
)

// Start boots the VM. isoOverride, when non-empty, is attached instead of
// the descriptor's ISO.
func (c *Controller) Start(ctx context.Context, isoOverride string) Result {
	id, logger := c.begin("start")
	d := c.desc

	if err := d.Validate(); err != nil {
		return c.fail(id, logger, "start", fmt.Errorf("%w: %w", backend.ErrInvalidConfig, err))
	}

	iso := d.ISOPath
	if isoOverride != "" {
		iso = isoOverride
	}
	if iso != "" {
		if err := config.CheckISO(iso); err != nil {
			return c.fail(id, logger, "start", fmt.Errorf("%w: %w", backend.ErrInvalidConfig, err))
		}
	}

	if status.IsRunning(c.status.Phase) {
		return c.fail(id, logger, "start", ErrAlreadyRunning)
	}

	logger.Info("Starting VM...", "iso", iso)
	if err := c.adapter.Start(ctx, d, iso); err != nil {
		return c.fail(id, logger, "start", err)
	}
	if err := status.TransitionToRunning(c.status); err != nil {
		return c.fail(id, logger, "start", err)
	}

	return c.succeed(id, logger, fmt.Sprintf("VM '%s' started", d.Name))
}

// Stop shuts the VM down. A VM that is not running is reported as a
// failure without contacting the backend's stop action.
func (c *Controller) Stop(ctx context.Context) Result {
	id, logger := c.begin("stop")

	c.refresh(ctx, logger)
	if !status.IsRunning(c.status.Phase) {
		return c.fail(id, logger, "stop", ErrNotRunning)
	}

	if err := c.stop(ctx, logger); err != nil {
		return c.fail(id, logger, "stop", err)
	}

	return c.succeed(id, logger, fmt.Sprintf("VM '%s' stopped", c.desc.Name))
}

func (c *Controller) stop(ctx context.Context, logger *slog.Logger) error {
	logger.Info("Stopping VM...")
	if err := c.adapter.Stop(ctx, c.desc); err != nil {
		return err
	}
	return status.TransitionToStopped(c.status)
}
