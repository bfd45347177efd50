package vm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/media"
)

// Create allocates the VM's storage and registers it with the backend.
//
// This orchestrates the creation process:
//  1. Validate the descriptor and the installer ISO
//  2. Create the VM directory
//  3. Check free space for the disk (warning only)
//  4. Create the disk and backend registration
//
// Nothing is rolled back if a backend step fails. The VM stays Stopped.
func (c *Controller) Create(ctx context.Context) Result {
	id, logger := c.begin("create")
	d := c.desc

	// Step 1: Validate
	logger.Info("Validating VM definition...")
	if err := d.Validate(); err != nil {
		return c.fail(id, logger, "create", fmt.Errorf("%w: %w", backend.ErrInvalidConfig, err))
	}
	if err := config.CheckISO(d.ISOPath); err != nil {
		return c.fail(id, logger, "create", fmt.Errorf("%w: %w", backend.ErrInvalidConfig, err))
	}
	c.describeISO(d.ISOPath, logger)

	// Step 2: Create VM directory
	logger.Info("Creating VM directory...", "path", d.StorageDir)
	if err := c.storage.EnsureDir(d.StorageDir); err != nil {
		return c.fail(id, logger, "create", err)
	}

	// Step 3: Check disk space
	if need, err := d.DiskSizeBytes(); err == nil {
		if err := disk.CheckDiskSpace(d.StorageDir, need); err != nil {
			logger.Warn("disk may not have room to grow to full size", "error", err)
		}
	}

	// Step 4: Create disk and register with backend
	logger.Info("Creating VM...", "backend", c.adapter.Kind().DisplayName(), "disk", c.adapter.DiskPath(d))
	if err := c.adapter.Create(ctx, d); err != nil {
		return c.fail(id, logger, "create", err)
	}

	return c.succeed(id, logger, fmt.Sprintf("VM '%s' created successfully", d.Name))
}

// describeISO logs what the installer image appears to be. Images that
// cannot be read as ISO9660 are still accepted.
func (c *Controller) describeISO(path string, logger *slog.Logger) {
	info, err := media.Inspect(path)
	if err != nil {
		logger.Debug("could not inspect installer image", "error", err)
		return
	}
	logger.Info("Installer image", "label", info.Label, "windows_setup", info.IsWindowsInstaller())
}
