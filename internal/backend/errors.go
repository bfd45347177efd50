package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying backend failures with errors.Is.
var (
	// ErrInvalidConfig means the request was rejected before any backend
	// command ran (missing ISO, invalid descriptor).
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDiskAllocation means the disk image could not be created.
	ErrDiskAllocation = errors.New("disk allocation failed")

	// ErrBackendCommand means a backend tool ran and reported failure.
	ErrBackendCommand = errors.New("backend command failed")

	// ErrLaunch means the VM process could not be started or exited
	// immediately after starting.
	ErrLaunch = errors.New("VM failed to launch")

	// ErrNotFound means the VM or its disk does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedBackend means the backend name is not recognized.
	ErrUnsupportedBackend = errors.New("unsupported backend")
)

// CommandError describes a backend command that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string

	notFound bool
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap makes every CommandError match ErrBackendCommand.
func (e *CommandError) Unwrap() error {
	return ErrBackendCommand
}

// Is additionally matches ErrNotFound when the tool reported that the VM
// does not exist.
func (e *CommandError) Is(target error) bool {
	return e.notFound && target == ErrNotFound
}

// StepError reports which step of a multi-step operation failed.
type StepError struct {
	Step  string
	Index int // 1-based
	Total int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d (%s) failed: %v", e.Index, e.Total, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
