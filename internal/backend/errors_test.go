package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandError(t *testing.T) {
	err := &CommandError{Command: "VBoxManage startvm x", ExitCode: 1, Output: "boom"}

	assert.ErrorIs(t, err, ErrBackendCommand)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "VBoxManage startvm x exited with status 1: boom", err.Error())

	nf := &CommandError{Command: "VBoxManage startvm x", ExitCode: 1, notFound: true}
	assert.ErrorIs(t, nf, ErrNotFound)
	assert.ErrorIs(t, nf, ErrBackendCommand)

	wrapped := fmt.Errorf("failed to start: %w", nf)
	var ce *CommandError
	assert.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, 1, ce.ExitCode)
}

func TestStepError(t *testing.T) {
	inner := &CommandError{Command: "x", ExitCode: 2}
	err := &StepError{Step: "new-vhd", Index: 2, Total: 6, Err: inner}

	assert.Equal(t, "step 2/6 (new-vhd) failed: x exited with status 2", err.Error())
	assert.ErrorIs(t, err, ErrBackendCommand)
}
