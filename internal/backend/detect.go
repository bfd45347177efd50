package backend

import (
	"context"
	"os"
	"runtime"

	"github.com/jbweber/winvm/internal/hostexec"
)

// KVMDevice is the device node whose presence enables the KVM backend.
const KVMDevice = "/dev/kvm"

// Host is the view of the local machine that detection needs.
type Host struct {
	GOOS   string
	Stat   func(name string) (os.FileInfo, error)
	Runner hostexec.Runner

	// PowerShell is the binary used to look for the Hyper-V module on Windows.
	// Defaults to "powershell".
	PowerShell string
}

// LocalHost returns the Host for the running process.
func LocalHost(runner hostexec.Runner) Host {
	return Host{GOOS: runtime.GOOS, Stat: os.Stat, Runner: runner}
}

// Detect picks the backend for host. It never fails: anything that cannot
// be positively identified as Hyper-V or KVM falls back to VirtualBox.
//
//   - windows: Hyper-V if the Get-VM cmdlet exists, else VirtualBox
//   - darwin: VirtualBox
//   - anything else: KVM if /dev/kvm exists, else VirtualBox
func Detect(ctx context.Context, host Host) Kind {
	switch host.GOOS {
	case "windows":
		if host.Runner == nil {
			return KindVirtualBox
		}
		ps := host.PowerShell
		if ps == "" {
			ps = "powershell"
		}
		res, err := host.Runner.Run(ctx, ps, "-NoProfile", "-Command", "Get-Command Get-VM")
		if err == nil && res.Success() {
			return KindHyperV
		}
		return KindVirtualBox
	case "darwin":
		return KindVirtualBox
	default:
		stat := host.Stat
		if stat == nil {
			stat = os.Stat
		}
		if _, err := stat(KVMDevice); err == nil {
			return KindKVM
		}
		return KindVirtualBox
	}
}

// Resolve returns the backend named by requested, or the detected backend
// when requested is "auto" or empty.
func Resolve(ctx context.Context, requested string, host Host) (Kind, error) {
	k, ok, err := ParseKind(requested)
	if err != nil {
		return "", err
	}
	if ok {
		return k, nil
	}
	return Detect(ctx, host), nil
}
