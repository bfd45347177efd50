// Package doctor checks whether the host can run winvm's backends.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/libvirt"
)

// CheckResult holds the outcome of a single doctor check.
type CheckResult struct {
	Name     string
	Category string // "backend", "binary", "device", "service", "storage"
	Passed   bool
	// Optional failures are reported but do not fail the run.
	Optional bool
	Message  string
	FixCmd   string // empty if passed
}

// Env is everything the checks read from the host. Zero function fields
// fall back to the real implementations.
type Env struct {
	Host      backend.Host
	Settings  *config.Settings
	LookPath  func(file string) (string, error)
	FreeBytes func(dir string) (uint64, error)
	QueryHost func(ctx context.Context, socket string) (*libvirt.HostInfo, error)
}

func (e Env) withDefaults() Env {
	if e.Settings == nil {
		e.Settings = config.Defaults()
	}
	if e.Host.Stat == nil {
		e.Host.Stat = os.Stat
	}
	if e.LookPath == nil {
		e.LookPath = exec.LookPath
	}
	if e.FreeBytes == nil {
		e.FreeBytes = disk.FreeBytes
	}
	if e.QueryHost == nil {
		e.QueryHost = func(ctx context.Context, socket string) (*libvirt.HostInfo, error) {
			return libvirt.QueryHost(ctx, socket, 2*time.Second)
		}
	}
	return e
}

// RunAll resolves the backend and runs the checks that apply to it.
func RunAll(ctx context.Context, env Env) []CheckResult {
	env = env.withDefaults()

	kind, res := checkBackend(ctx, env)
	results := []CheckResult{res}

	if res.Passed {
		for _, bin := range requiredBinaries(kind, env.Settings) {
			results = append(results, checkBinary(env, bin))
		}
		if kind == backend.KindKVM {
			results = append(results, checkKVMDevice(env), checkLibvirt(ctx, env))
		}
	}

	return append(results, checkStorage(env))
}

// PrintResults writes check results to w. Returns true if all required
// checks passed.
func PrintResults(results []CheckResult, w io.Writer, color bool) bool {
	allPassed := true
	passed := 0
	failed := 0
	warned := 0

	for _, r := range results {
		var icon, colorStart, colorEnd string
		switch {
		case r.Passed:
			passed++
			icon = "v"
			if color {
				colorStart = "\033[32m" // green
			}
		case r.Optional:
			warned++
			icon = "!"
			if color {
				colorStart = "\033[33m" // yellow
			}
		default:
			failed++
			allPassed = false
			icon = "x"
			if color {
				colorStart = "\033[31m" // red
			}
		}
		if colorStart != "" {
			colorEnd = "\033[0m"
		}
		_, _ = fmt.Fprintf(w, "  %s%s %s%s\n", colorStart, icon, r.Message, colorEnd)
		if !r.Passed && r.FixCmd != "" {
			_, _ = fmt.Fprintf(w, "     Fix: %s\n", r.FixCmd)
		}
	}

	_, _ = fmt.Fprintln(w)
	total := passed + failed + warned
	switch {
	case !allPassed:
		_, _ = fmt.Fprintf(w, "  %d/%d passed, %d failed\n", passed, total, failed)
	case warned > 0:
		_, _ = fmt.Fprintf(w, "  %d/%d passed, %d warning(s)\n", passed, total, warned)
	default:
		_, _ = fmt.Fprintf(w, "  %d/%d passed\n", passed, total)
	}

	return allPassed
}
