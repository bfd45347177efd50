package backend

import (
	"fmt"
	"strings"

	"github.com/jbweber/winvm/internal/naming"
)

// Kind identifies a hypervisor backend.
type Kind string

const (
	KindKVM        Kind = "kvm"
	KindHyperV     Kind = "hyperv"
	KindVirtualBox Kind = "virtualbox"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindKVM, KindHyperV, KindVirtualBox}

// String returns the kind's configuration name.
func (k Kind) String() string {
	return string(k)
}

// DisplayName returns a human-friendly backend name.
func (k Kind) DisplayName() string {
	switch k {
	case KindKVM:
		return "KVM/QEMU"
	case KindHyperV:
		return "Hyper-V"
	case KindVirtualBox:
		return "VirtualBox"
	default:
		return string(k)
	}
}

// DiskFormat returns the native disk image format of the backend.
func (k Kind) DiskFormat() naming.DiskFormat {
	switch k {
	case KindHyperV:
		return naming.FormatVHDX
	case KindVirtualBox:
		return naming.FormatVDI
	default:
		return naming.FormatQCOW2
	}
}

// ParseKind parses a backend name. "auto" and "" return ok=false with no
// error, meaning the backend should be detected.
func ParseKind(s string) (k Kind, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return "", false, nil
	case "kvm", "qemu":
		return KindKVM, true, nil
	case "hyperv", "hyper-v":
		return KindHyperV, true, nil
	case "virtualbox", "vbox":
		return KindVirtualBox, true, nil
	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnsupportedBackend, s)
	}
}
