// Package hostexec runs the external tools that drive each hypervisor
// backend (qemu-img, qemu-system, powershell, VBoxManage, pkill).
//
// Backends talk to the Runner interface rather than os/exec so the command
// sequences they issue can be asserted in tests without the tools installed.
package hostexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Result holds the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Output returns stderr if present, otherwise stdout, trimmed. This is the
// text worth showing a user when a command fails.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// StartSpec describes a long-running process to launch without waiting.
type StartSpec struct {
	Name string
	Args []string

	// LogPath receives the process's stdout and stderr. Empty discards them.
	LogPath string
}

// Process is a launched process that is not waited on by the caller.
type Process interface {
	// Pid returns the operating system process ID.
	Pid() int

	// WaitFor waits up to d for the process to exit. exited is false if the
	// process is still running when d elapses; err is the exit error, if any.
	WaitFor(d time.Duration) (exited bool, err error)
}

// Runner executes host commands.
type Runner interface {
	// Run executes a command and waits for it. A non-zero exit status is not
	// an error: it is reported through Result.ExitCode. err is non-nil only
	// when the command could not be executed at all.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// Start launches a detached process and returns immediately.
	Start(ctx context.Context, spec StartSpec) (Process, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct {
	logger *slog.Logger
}

// NewExec returns a Runner that executes commands on the local host.
func NewExec(logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{logger: logger.With("component", "hostexec")}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	e.logger.Debug("running command", "cmd", FormatCmd(name, args...))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			e.logger.Debug("command exited non-zero", "cmd", name, "exit_code", res.ExitCode)
			return res, nil
		}
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}

	return res, nil
}

// Start implements Runner. The process is placed in its own session where
// the platform supports it, so it outlives the calling CLI.
func (e *Exec) Start(_ context.Context, spec StartSpec) (Process, error) {
	e.logger.Debug("starting process", "cmd", FormatCmd(spec.Name, spec.Args...), "log", spec.LogPath)

	// Deliberately not CommandContext: cancelling the caller's context must
	// not kill a VM that was started successfully.
	cmd := exec.Command(spec.Name, spec.Args...)
	detach(cmd)

	var out io.Writer = io.Discard
	var logFile *os.File
	if spec.LogPath != "" {
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", spec.LogPath, err)
		}
		logFile = f
		out = f
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("failed to start %s: %w", spec.Name, err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		if logFile != nil {
			_ = logFile.Close()
		}
		close(p.done)
	}()

	return p, nil
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *process) WaitFor(d time.Duration) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.done:
		return true, p.err
	case <-timer.C:
		return false, nil
	}
}

// FormatCmd renders a command line for logs and error messages, quoting
// arguments that contain whitespace or quotes.
func FormatCmd(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, s := range append([]string{name}, args...) {
		if s == "" || strings.ContainsAny(s, " \t\n\"'") {
			s = strconv.Quote(s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
