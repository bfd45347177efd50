package backend

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/hostexec/hostexectest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestAdapter builds an adapter of kind backed by a recording runner.
func newTestAdapter(t *testing.T, kind Kind, runner *hostexectest.Runner, tweak func(s *config.Settings)) Adapter {
	t.Helper()

	s := config.Defaults()
	if tweak != nil {
		tweak(s)
	}
	a, err := New(kind, Deps{Runner: runner, Settings: s, Logger: testLogger()})
	require.NoError(t, err)
	return a
}

// testVM returns a descriptor whose storage directory is a fresh temp dir.
func testVM(t *testing.T) *config.Descriptor {
	t.Helper()

	root := t.TempDir()
	return &config.Descriptor{
		Name:       "Win11Test",
		MemoryMB:   4096,
		DiskSize:   "50G",
		ISOPath:    filepath.Join(root, "win11.iso"),
		StorageDir: filepath.Join(root, "Win11Test"),
		CPUs:       2,
	}
}
