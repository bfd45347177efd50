// Package naming provides the on-disk naming conventions for VMs: where a
// VM's directory lives under the storage root, what its disk artifact is
// called, and how disk size specs such as "50G" are interpreted.
//
// These rules are shared by every backend so that a VM created by one code
// path can be found by the registry scan and by the other operations.
package naming

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// StorageDirName is the directory created under the user's home directory
// when no storage root is configured.
const StorageDirName = "VirtualMachines"

// DiskFormat identifies the on-disk format of a VM's disk artifact.
type DiskFormat string

const (
	// FormatQCOW2 is the QEMU copy-on-write format used by the KVM backend.
	FormatQCOW2 DiskFormat = "qcow2"
	// FormatVHDX is the Hyper-V virtual hard disk format.
	FormatVHDX DiskFormat = "vhdx"
	// FormatVDI is the VirtualBox disk image format.
	FormatVDI DiskFormat = "vdi"
)

// DefaultStorageRoot returns $HOME/VirtualMachines.
func DefaultStorageRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, StorageDirName), nil
}

// VMDirectory returns the storage directory for a VM under root.
// Format: {root}/{vmName}
func VMDirectory(root, vmName string) string {
	return filepath.Join(root, vmName)
}

// DiskFileName returns the disk artifact name for a VM.
// Format: {vmName}.{format} (e.g., "Win11Test.qcow2")
func DiskFileName(vmName string, format DiskFormat) string {
	return fmt.Sprintf("%s.%s", vmName, format)
}

// LogFileName returns the name of the file a launched VM process writes
// its diagnostics to.
// Format: {vmName}.log
func LogFileName(vmName string) string {
	return vmName + ".log"
}

// ValidateVMName checks that name can be used both as a directory name and
// as a backend-native VM identifier.
func ValidateVMName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name %q is not a valid directory name", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name must not contain path separators, got %q", name)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("name must not contain NUL bytes")
	}
	return nil
}

// ParseSize parses a disk size spec in qemu-img notation and returns the
// size in bytes. A bare number is bytes; the suffixes K, M, G, T, P and E
// (case insensitive, optionally followed by "B") are powers of 1024,
// matching how qemu-img interprets the same string. A suffixed number may
// carry a decimal fraction, which is truncated to whole bytes.
//
// Examples: "50G" → 53687091200, "1.5G" → 1610612736, "1T" → 1099511627776
func ParseSize(spec string) (uint64, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return 0, fmt.Errorf("size is required")
	}

	upper := strings.ToUpper(s)
	upper = strings.TrimSuffix(upper, "B")
	if upper == "" {
		return 0, fmt.Errorf("invalid size %q", spec)
	}

	multiplier := uint64(1)
	switch upper[len(upper)-1] {
	case 'K':
		multiplier = 1 << 10
	case 'M':
		multiplier = 1 << 20
	case 'G':
		multiplier = 1 << 30
	case 'T':
		multiplier = 1 << 40
	case 'P':
		multiplier = 1 << 50
	case 'E':
		multiplier = 1 << 60
	}
	number := upper
	if multiplier != 1 {
		number = upper[:len(upper)-1]
	}

	whole, fraction, hasFraction := strings.Cut(number, ".")
	if hasFraction && multiplier == 1 {
		return 0, fmt.Errorf("invalid size %q: fractional bytes", spec)
	}
	if hasFraction && (whole == "" || !isDigits(fraction)) {
		return 0, fmt.Errorf("invalid size %q", spec)
	}

	n, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", spec, err)
	}
	if n > (^uint64(0))/multiplier {
		return 0, fmt.Errorf("size %q overflows", spec)
	}
	total := n * multiplier

	if hasFraction {
		extra := fractionBytes(fraction, multiplier)
		if total > ^uint64(0)-extra {
			return 0, fmt.Errorf("size %q overflows", spec)
		}
		total += extra
	}

	if total == 0 {
		return 0, fmt.Errorf("size must be > 0, got %q", spec)
	}
	return total, nil
}

// fractionBytes returns 0.<digits> * multiplier, truncated. Digits past the
// ninth cannot change the result for multipliers up to 1<<60 by more than
// a byte and are dropped.
func fractionBytes(digits string, multiplier uint64) uint64 {
	if len(digits) > 9 {
		digits = digits[:9]
	}
	frac, _ := strconv.ParseUint(digits, 10, 64)
	scale := uint64(1)
	for range digits {
		scale *= 10
	}
	hi, lo := bits.Mul64(frac, multiplier)
	q, _ := bits.Div64(hi, lo, scale)
	return q
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SizeMiB converts a size spec to whole mebibytes, rounding up. VirtualBox
// takes disk sizes in MB.
func SizeMiB(spec string) (uint64, error) {
	b, err := ParseSize(spec)
	if err != nil {
		return 0, err
	}
	const mib = 1 << 20
	return (b + mib - 1) / mib, nil
}
