// Package media inspects installer images before they are attached to a
// VM.
package media

import (
	"fmt"
	"os"
	"strings"

	"github.com/kdomanski/iso9660"
)

// Info describes an installer ISO.
type Info struct {
	Path  string
	Label string
	Size  int64

	// RootEntries are the names in the image's root directory.
	RootEntries []string
}

// Inspect opens the ISO9660 image at path and reads its volume label and
// root directory. Windows media is UDF with an ISO9660 bridge, which is
// what gets read here.
func Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ISO %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat ISO %s: %w", path, err)
	}

	img, err := iso9660.OpenImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s is not an ISO9660 image: %w", path, err)
	}

	label, err := img.Label()
	if err != nil {
		return nil, fmt.Errorf("failed to read volume label of %s: %w", path, err)
	}

	root, err := img.RootDir()
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory of %s: %w", path, err)
	}
	children, err := root.GetChildren()
	if err != nil {
		return nil, fmt.Errorf("failed to list root directory of %s: %w", path, err)
	}

	info := &Info{Path: path, Label: strings.TrimSpace(label), Size: st.Size()}
	for _, child := range children {
		info.RootEntries = append(info.RootEntries, child.Name())
	}
	return info, nil
}

// IsWindowsInstaller reports whether the image has the layout of Windows
// setup media: a sources directory and setup.exe at the root.
func (i *Info) IsWindowsInstaller() bool {
	var sources, setup bool
	for _, name := range i.RootEntries {
		switch strings.ToLower(name) {
		case "sources":
			sources = true
		case "setup.exe":
			setup = true
		}
	}
	return sources && setup
}
