package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned by Stop when the VM is not running.
	ErrNotRunning = errors.New("VM is not running")

	// ErrAlreadyRunning is returned by Start when the VM is running.
	ErrAlreadyRunning = errors.New("VM is already running")
)

// Result is the outcome of a lifecycle operation.
type Result struct {
	OK      bool
	Message string

	// Err is the failure cause when OK is false. It wraps one of the
	// backend sentinel errors where one applies.
	Err error

	// Cleanup lists leftovers that could not be removed. They never make
	// an operation fail.
	Cleanup []Cleanup

	// OperationID correlates the result with its log lines.
	OperationID string
}

// Cleanup is a resource an operation meant to remove but could not.
type Cleanup struct {
	Path string
	Err  error
}

func (c Cleanup) String() string {
	return fmt.Sprintf("%s: %v", c.Path, c.Err)
}
