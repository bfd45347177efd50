package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/naming"
)

// binary is an executable a backend shells out to.
type binary struct {
	name string
	fix  string
}

func requiredBinaries(kind backend.Kind, s *config.Settings) []binary {
	switch kind {
	case backend.KindKVM:
		return []binary{
			{name: s.QEMU.ImgBinary, fix: "sudo dnf install qemu-img"},
			{name: s.QEMU.SystemBinary, fix: "sudo dnf install qemu-kvm"},
			{name: "pgrep", fix: "sudo dnf install procps-ng"},
			{name: "pkill", fix: "sudo dnf install procps-ng"},
		}
	case backend.KindHyperV:
		return []binary{
			{name: s.PowerShell, fix: "Enable-WindowsOptionalFeature -Online -FeatureName Microsoft-Hyper-V-All"},
		}
	case backend.KindVirtualBox:
		return []binary{
			{name: s.VBoxManage, fix: "install VirtualBox from https://www.virtualbox.org/wiki/Downloads"},
		}
	}
	return nil
}

func checkBackend(ctx context.Context, env Env) (backend.Kind, CheckResult) {
	kind, err := backend.Resolve(ctx, env.Settings.Backend, env.Host)
	if err != nil {
		return "", CheckResult{
			Name:     "backend",
			Category: "backend",
			Passed:   false,
			Message:  fmt.Sprintf("backend %q is not supported", env.Settings.Backend),
			FixCmd:   "use --backend kvm, hyperv, virtualbox or auto",
		}
	}

	how := "configured"
	if env.Settings.Backend == "" || env.Settings.Backend == config.BackendAuto {
		how = "auto-detected"
	}
	return kind, CheckResult{
		Name:     "backend",
		Category: "backend",
		Passed:   true,
		Message:  fmt.Sprintf("backend %s (%s)", kind.DisplayName(), how),
	}
}

func checkBinary(env Env, b binary) CheckResult {
	path, err := env.LookPath(b.name)
	if err != nil {
		return CheckResult{
			Name:     "binary-" + b.name,
			Category: "binary",
			Passed:   false,
			Message:  fmt.Sprintf("%s not found in PATH", b.name),
			FixCmd:   b.fix,
		}
	}
	return CheckResult{
		Name:     "binary-" + b.name,
		Category: "binary",
		Passed:   true,
		Message:  fmt.Sprintf("%s found at %s", b.name, path),
	}
}

func checkKVMDevice(env Env) CheckResult {
	if _, err := env.Host.Stat(backend.KVMDevice); err != nil {
		return CheckResult{
			Name:     "kvm-device",
			Category: "device",
			Passed:   false,
			Message:  fmt.Sprintf("%s not available", backend.KVMDevice),
			FixCmd:   "enable virtualization in firmware and load the kvm module",
		}
	}
	return CheckResult{
		Name:     "kvm-device",
		Category: "device",
		Passed:   true,
		Message:  fmt.Sprintf("%s available", backend.KVMDevice),
	}
}

// checkLibvirt is optional: the KVM backend launches QEMU directly and
// libvirt only matters for imported exports.
func checkLibvirt(ctx context.Context, env Env) CheckResult {
	info, err := env.QueryHost(ctx, env.Settings.LibvirtSocket)
	if err != nil {
		return CheckResult{
			Name:     "libvirt",
			Category: "service",
			Optional: true,
			Message:  "libvirtd not reachable (only needed to import exported domains)",
			FixCmd:   "sudo systemctl start libvirtd",
		}
	}
	return CheckResult{
		Name:     "libvirt",
		Category: "service",
		Passed:   true,
		Message:  fmt.Sprintf("libvirt %s on %s", info.LibraryVersion, info.Hostname),
	}
}

func checkStorage(env Env) CheckResult {
	root, err := env.Settings.ResolveStorageRoot()
	if err != nil {
		return CheckResult{
			Name:     "storage",
			Category: "storage",
			Passed:   false,
			Message:  fmt.Sprintf("cannot resolve storage root: %v", err),
			FixCmd:   "set storage_root in the config file",
		}
	}

	need, err := naming.ParseSize(env.Settings.DiskSize)
	if err != nil {
		need = 0
	}

	free, err := env.FreeBytes(existingAncestor(env, root))
	if err != nil {
		return CheckResult{
			Name:     "storage",
			Category: "storage",
			Optional: true,
			Message:  fmt.Sprintf("cannot determine free space under %s: %v", root, err),
		}
	}
	if free < need {
		return CheckResult{
			Name:     "storage",
			Category: "storage",
			Passed:   false,
			Message: fmt.Sprintf("%s free under %s, default disk needs %s",
				humanize.IBytes(free), root, humanize.IBytes(need)),
			FixCmd: "free up space or point storage_root at a larger volume",
		}
	}
	return CheckResult{
		Name:     "storage",
		Category: "storage",
		Passed:   true,
		Message:  fmt.Sprintf("%s free under %s", humanize.IBytes(free), root),
	}
}

// existingAncestor walks up from dir to the first path that exists, so
// free space can be measured before the storage root is created.
func existingAncestor(env Env, dir string) string {
	for {
		if _, err := env.Host.Stat(dir); err == nil || !errors.Is(err, fs.ErrNotExist) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
