//go:build windows

package disk

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// FreeBytes returns the space available to the calling user on the volume
// holding dir.
func FreeBytes(dir string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, fmt.Errorf("invalid path %s: %w", dir, err)
	}
	var available, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &available, &total, &free); err != nil {
		return 0, fmt.Errorf("failed to get free space for %s: %w", dir, err)
	}
	return available, nil
}
