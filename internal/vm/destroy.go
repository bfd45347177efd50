package vm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jbweber/winvm/internal/status"
)

// Delete removes the VM.
//
// This orchestrates the removal process:
//  1. Stop the VM if it is running
//  2. Wait for the settle delay so the backend releases the disk
//  3. Remove the backend registration and disk
//  4. Remove the VM directory if it is empty
//
// Step 4 is best-effort: a directory that cannot be removed is reported in
// Result.Cleanup and the operation still succeeds. Deleting a VM that was
// already deleted succeeds.
func (c *Controller) Delete(ctx context.Context) Result {
	id, logger := c.begin("delete")
	d := c.desc

	c.refresh(ctx, logger)

	// Step 1: Stop if running
	if status.IsRunning(c.status.Phase) {
		if err := c.stop(ctx, logger); err != nil {
			return c.fail(id, logger, "delete", fmt.Errorf("failed to stop VM before delete: %w", err))
		}

		// Step 2: Settle
		if c.settleDelay > 0 {
			logger.Info("Waiting for VM to stop...", "delay", c.settleDelay)
			if err := sleep(ctx, c.settleDelay); err != nil {
				return c.fail(id, logger, "delete", err)
			}
		}
	}

	// Step 3: Remove from backend
	logger.Info("Deleting VM...", "disk", c.adapter.DiskPath(d))
	if err := c.adapter.Delete(ctx, d); err != nil {
		return c.fail(id, logger, "delete", err)
	}

	// Step 4: Remove directory
	res := c.succeed(id, logger, fmt.Sprintf("VM '%s' deleted", d.Name))
	if err := c.storage.RemoveDir(d.StorageDir); err != nil {
		logger.Warn("VM directory left behind", "path", d.StorageDir, "error", err)
		res.Cleanup = append(res.Cleanup, Cleanup{Path: d.StorageDir, Err: err})
	}
	if len(res.Cleanup) > 0 {
		paths := make([]string, len(res.Cleanup))
		for i, cl := range res.Cleanup {
			paths[i] = cl.Path
		}
		res.Message += fmt.Sprintf(" (left behind: %s)", strings.Join(paths, ", "))
	}
	return res
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
