//go:build !linux && !darwin && !windows

package disk

import (
	"errors"
	"fmt"
)

// FreeBytes is not implemented on this platform.
func FreeBytes(dir string) (uint64, error) {
	return 0, fmt.Errorf("free space of %s: %w", dir, errors.ErrUnsupported)
}
