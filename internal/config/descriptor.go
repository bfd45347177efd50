package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jbweber/winvm/internal/naming"
)

// Descriptor identifies one VM and sizes its resources. It is built fresh
// for every operation; nothing in it is persisted. Whether a VM exists is
// decided by the filesystem, not by a descriptor.
type Descriptor struct {
	Name       string `yaml:"name" json:"name"`
	MemoryMB   int    `yaml:"memory_mb" json:"memory_mb"`
	DiskSize   string `yaml:"disk_size" json:"disk_size"`
	ISOPath    string `yaml:"iso_path,omitempty" json:"iso_path,omitempty"`
	StorageDir string `yaml:"storage_dir" json:"storage_dir"`
	CPUs       int    `yaml:"cpus" json:"cpus"`
}

// NewDescriptor builds a descriptor for name using the sizing defaults and
// storage root from s. Callers override fields afterwards as needed.
func NewDescriptor(name string, s *Settings) (*Descriptor, error) {
	if s == nil {
		s = Defaults()
	}

	root, err := s.ResolveStorageRoot()
	if err != nil {
		return nil, err
	}

	return &Descriptor{
		Name:       name,
		MemoryMB:   s.MemoryMB,
		DiskSize:   s.DiskSize,
		StorageDir: naming.VMDirectory(root, name),
		CPUs:       s.CPUs,
	}, nil
}

// ApplyDefaults fills an empty StorageDir with <home>/VirtualMachines/<name>.
func (d *Descriptor) ApplyDefaults() error {
	if d.StorageDir != "" {
		return nil
	}
	root, err := naming.DefaultStorageRoot()
	if err != nil {
		return err
	}
	d.StorageDir = naming.VMDirectory(root, d.Name)
	return nil
}

// Validate checks the descriptor's structure. ISO existence is checked by
// the operations that need the ISO, see CheckISO.
func (d *Descriptor) Validate() error {
	if err := naming.ValidateVMName(d.Name); err != nil {
		return err
	}
	if d.MemoryMB <= 0 {
		return fmt.Errorf("memory must be > 0 MB, got %d", d.MemoryMB)
	}
	if _, err := naming.ParseSize(d.DiskSize); err != nil {
		return fmt.Errorf("disk size: %w", err)
	}
	if d.StorageDir == "" {
		return fmt.Errorf("storage directory is required")
	}
	if d.CPUs < 0 {
		return fmt.Errorf("cpus must not be negative, got %d", d.CPUs)
	}
	return nil
}

// DiskPath returns the path of the VM's QEMU disk image.
// Format: {storageDir}/{name}.qcow2
func (d *Descriptor) DiskPath() string {
	return d.DiskPathFor(naming.FormatQCOW2)
}

// DiskPathFor returns the path of the VM's disk artifact in the given
// backend-native format.
func (d *Descriptor) DiskPathFor(format naming.DiskFormat) string {
	return filepath.Join(d.StorageDir, naming.DiskFileName(d.Name, format))
}

// LogPath returns where a launched VM process writes its output.
func (d *Descriptor) LogPath() string {
	return filepath.Join(d.StorageDir, naming.LogFileName(d.Name))
}

// DiskSizeBytes returns the requested disk size in bytes.
func (d *Descriptor) DiskSizeBytes() (uint64, error) {
	return naming.ParseSize(d.DiskSize)
}

// VCPUs returns the CPU count, defaulting to DefaultCPUs when unset.
func (d *Descriptor) VCPUs() int {
	if d.CPUs <= 0 {
		return DefaultCPUs
	}
	return d.CPUs
}

// CheckISO verifies that path names an existing regular file.
func CheckISO(path string) error {
	if path == "" {
		return fmt.Errorf("ISO path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("ISO file does not exist: %s", path)
		}
		return fmt.Errorf("failed to check ISO file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("ISO path is a directory: %s", path)
	}
	return nil
}
