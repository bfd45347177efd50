package vm

// Storage defines the filesystem operations the controller needs for a
// VM's directory.
//
// In production, this is satisfied by *disk.Manager.
// In tests, this is satisfied by mock implementations.
type Storage interface {
	// EnsureDir creates the directory and its parents if missing
	EnsureDir(dir string) error

	// RemoveDir removes the directory only if it is empty
	RemoveDir(dir string) error
}
