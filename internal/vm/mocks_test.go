package vm

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/naming"
)

// mockAdapter is a mock implementation of backend.Adapter for testing.
type mockAdapter struct {
	mu   sync.Mutex
	kind backend.Kind

	// Configurable behavior
	createFunc func(d *config.Descriptor) error
	startFunc  func(d *config.Descriptor, iso string) error
	stopFunc   func(d *config.Descriptor) error
	deleteFunc func(d *config.Descriptor) error
	stateFunc  func(d *config.Descriptor) (backend.PowerState, error)

	// Call tracking
	calls      []string // method names in call order
	startCalls []string // ISO passed to each Start
}

// newMockAdapter creates a mock adapter where every action succeeds and
// the backend cannot report a power state.
func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		kind:       backend.KindKVM,
		createFunc: func(*config.Descriptor) error { return nil },
		startFunc:  func(*config.Descriptor, string) error { return nil },
		stopFunc:   func(*config.Descriptor) error { return nil },
		deleteFunc: func(*config.Descriptor) error { return nil },
		stateFunc: func(*config.Descriptor) (backend.PowerState, error) {
			return backend.PowerUnknown, nil
		},
	}
}

func (m *mockAdapter) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// count returns how many times method was called.
func (m *mockAdapter) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// actions returns the recorded calls without State queries.
func (m *mockAdapter) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c != "State" {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockAdapter) Kind() backend.Kind { return m.kind }

func (m *mockAdapter) DiskPath(d *config.Descriptor) string {
	return filepath.Join(d.StorageDir, naming.DiskFileName(d.Name, m.kind.DiskFormat()))
}

func (m *mockAdapter) Create(_ context.Context, d *config.Descriptor) error {
	m.record("Create")
	return m.createFunc(d)
}

func (m *mockAdapter) Start(_ context.Context, d *config.Descriptor, iso string) error {
	m.record("Start")
	m.mu.Lock()
	m.startCalls = append(m.startCalls, iso)
	m.mu.Unlock()
	return m.startFunc(d, iso)
}

func (m *mockAdapter) Stop(_ context.Context, d *config.Descriptor) error {
	m.record("Stop")
	return m.stopFunc(d)
}

func (m *mockAdapter) Delete(_ context.Context, d *config.Descriptor) error {
	m.record("Delete")
	return m.deleteFunc(d)
}

func (m *mockAdapter) State(_ context.Context, d *config.Descriptor) (backend.PowerState, error) {
	m.record("State")
	return m.stateFunc(d)
}

// mockStorage is a mock implementation of the Storage interface for testing.
type mockStorage struct {
	ensureDirFunc func(dir string) error
	removeDirFunc func(dir string) error

	ensureDirCalls []string
	removeDirCalls []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		ensureDirFunc: func(string) error { return nil },
		removeDirFunc: func(string) error { return nil },
	}
}

func (m *mockStorage) EnsureDir(dir string) error {
	m.ensureDirCalls = append(m.ensureDirCalls, dir)
	return m.ensureDirFunc(dir)
}

func (m *mockStorage) RemoveDir(dir string) error {
	m.removeDirCalls = append(m.removeDirCalls, dir)
	return m.removeDirFunc(dir)
}
