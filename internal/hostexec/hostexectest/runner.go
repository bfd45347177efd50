// Package hostexectest provides a recording hostexec.Runner for tests.
package hostexectest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jbweber/winvm/internal/hostexec"
)

// Call is one command the Runner was asked to run or start.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a single space-joined line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner records every command and answers with RunFunc / StartFunc.
// The zero value succeeds for every Run and starts a process that never
// exits.
type Runner struct {
	mu sync.Mutex

	// Configurable behavior
	RunFunc   func(name string, args []string) (hostexec.Result, error)
	StartFunc func(spec hostexec.StartSpec) (hostexec.Process, error)

	// Call tracking
	RunCalls   []Call
	StartCalls []hostexec.StartSpec
}

// Run implements hostexec.Runner.
func (r *Runner) Run(_ context.Context, name string, args ...string) (hostexec.Result, error) {
	r.mu.Lock()
	r.RunCalls = append(r.RunCalls, Call{Name: name, Args: append([]string(nil), args...)})
	fn := r.RunFunc
	r.mu.Unlock()

	if fn == nil {
		return hostexec.Result{}, nil
	}
	return fn(name, args)
}

// Start implements hostexec.Runner.
func (r *Runner) Start(_ context.Context, spec hostexec.StartSpec) (hostexec.Process, error) {
	r.mu.Lock()
	r.StartCalls = append(r.StartCalls, spec)
	fn := r.StartFunc
	r.mu.Unlock()

	if fn == nil {
		return &Process{PID: 4242}, nil
	}
	return fn(spec)
}

// Lines returns every Run call rendered with Call.String, in order.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, len(r.RunCalls))
	for i, c := range r.RunCalls {
		lines[i] = c.String()
	}
	return lines
}

// Reset forgets all recorded calls.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RunCalls = nil
	r.StartCalls = nil
}

// Exit returns a RunFunc result with the given exit code and output on
// stderr.
func Exit(code int, stderr string) hostexec.Result {
	return hostexec.Result{ExitCode: code, Stderr: stderr}
}

// Process is a fake hostexec.Process. With Exited false it behaves like a
// process that outlives any wait.
type Process struct {
	PID     int
	Exited  bool
	ExitErr error
}

// Pid implements hostexec.Process.
func (p *Process) Pid() int { return p.PID }

// WaitFor implements hostexec.Process without sleeping.
func (p *Process) WaitFor(time.Duration) (bool, error) {
	if p.Exited {
		return true, p.ExitErr
	}
	return false, nil
}
