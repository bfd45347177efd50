package vm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/naming"
)

// Entry is a VM found under the storage root.
type Entry struct {
	Name       string `json:"name" yaml:"name"`
	Directory  string `json:"directory" yaml:"directory"`
	DiskPath   string `json:"disk_path" yaml:"disk_path"`
	DiskExists bool   `json:"disk_exists" yaml:"disk_exists"`
	DiskBytes  int64  `json:"disk_bytes" yaml:"disk_bytes"`

	// DiskModified is when the disk was last written; zero if missing.
	DiskModified time.Time `json:"disk_modified" yaml:"disk_modified"`
}

// Scan returns the names of the immediate subdirectories of root, sorted.
// Each is taken to be a VM. A missing root yields an empty list.
func Scan(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage root %s: %w", root, err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
			continue
		}
		// Follow symlinks to directories
		if e.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(root, e.Name())); err == nil && info.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// List scans root and reports each VM's disk artifact in the given format.
func List(root string, format naming.DiskFormat) ([]Entry, error) {
	names, err := Scan(root)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		dir := naming.VMDirectory(root, name)
		e := Entry{
			Name:      name,
			Directory: dir,
			DiskPath:  filepath.Join(dir, naming.DiskFileName(name, format)),
		}
		u, err := disk.Usage(e.DiskPath)
		if err != nil {
			return nil, err
		}
		e.DiskExists = u.Exists
		e.DiskBytes = u.Size
		e.DiskModified = u.ModTime
		entries = append(entries, e)
	}
	return entries, nil
}
