package vm

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/winvm/internal/naming"
)

func TestScan(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"zeta", "Alpha", "beta"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	names, err := Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, names, "directories only, sorted")
}

func TestScanMissingRoot(t *testing.T) {
	names, err := Scan(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestScanRootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Scan(path)
	assert.Error(t, err)
}

func TestScanFollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	target := t.TempDir()
	require.NoError(t, os.Symlink(target, filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(target, "missing"), filepath.Join(root, "dangling")))

	names, err := Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"linked"}, names)
}

func TestList(t *testing.T) {
	root := t.TempDir()

	withDisk := filepath.Join(root, "Win11Test")
	require.NoError(t, os.Mkdir(withDisk, 0o755))
	f, err := os.Create(filepath.Join(withDisk, "Win11Test.qcow2"))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(5<<20))
	require.NoError(t, f.Close())

	require.NoError(t, os.Mkdir(filepath.Join(root, "Empty"), 0o755))

	entries, err := List(root, naming.FormatQCOW2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{
		Name:      "Empty",
		Directory: filepath.Join(root, "Empty"),
		DiskPath:  filepath.Join(root, "Empty", "Empty.qcow2"),
	}, entries[0])

	assert.Equal(t, "Win11Test", entries[1].Name)
	assert.True(t, entries[1].DiskExists)
	assert.Equal(t, int64(5<<20), entries[1].DiskBytes)

	entries, err = List(root, naming.FormatVDI)
	require.NoError(t, err)
	assert.False(t, entries[1].DiskExists, "a qcow2 disk is not a VirtualBox disk")
}
