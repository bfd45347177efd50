package libvirt

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/winvm/internal/config"
)

// DefaultNetwork is the libvirt NAT network most hosts ship with.
const DefaultNetwork = "default"

// DomainOptions controls the parts of the domain that are not part of the
// VM descriptor.
type DomainOptions struct {
	// ISOPath attaches an installer as a SATA cdrom when set.
	ISOPath string
	// BootFromISO puts the cdrom ahead of the disk in the boot order.
	BootFromISO bool
	// Network is the libvirt network to attach to. Defaults to DefaultNetwork.
	Network string
}

// GenerateDomainXML renders d as a KVM domain for a Windows guest. The
// domain uses the descriptor's qcow2 disk in place and the same virtio
// devices the KVM backend launches QEMU with.
func GenerateDomainXML(d *config.Descriptor, opts DomainOptions) (string, error) {
	if d == nil {
		return "", fmt.Errorf("descriptor is required")
	}
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid descriptor: %w", err)
	}

	network := opts.Network
	if network == "" {
		network = DefaultNetwork
	}
	vcpus := d.VCPUs()

	bootDevices := []libvirtxml.DomainBootDevice{{Dev: "hd"}}
	if opts.ISOPath != "" && opts.BootFromISO {
		bootDevices = []libvirtxml.DomainBootDevice{{Dev: "cdrom"}, {Dev: "hd"}}
	}

	domain := &libvirtxml.Domain{
		Type: "kvm",
		Name: d.Name,
		Memory: &libvirtxml.DomainMemory{
			Value: uint(d.MemoryMB),
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     uint(vcpus),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch:    "x86_64",
				Machine: "q35",
				Type:    "hvm",
			},
			BootDevices: bootDevices,
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
			HyperV: &libvirtxml.DomainFeatureHyperV{
				Relaxed: &libvirtxml.DomainFeatureState{State: "on"},
				VAPIC:   &libvirtxml.DomainFeatureState{State: "on"},
			},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-passthrough",
			Topology: &libvirtxml.DomainCPUTopology{
				Sockets: 1,
				Cores:   vcpus,
				Threads: 1,
			},
		},
		// Windows keeps the RTC in local time.
		Clock: &libvirtxml.DomainClock{
			Offset: "localtime",
			Timer: []libvirtxml.DomainTimer{
				{Name: "rtc", TickPolicy: "catchup"},
				{Name: "pit", TickPolicy: "delay"},
				{Name: "hpet", Present: "no"},
				{Name: "hypervclock", Present: "yes"},
			},
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "destroy",
		Devices: &libvirtxml.DomainDeviceList{
			Controllers: []libvirtxml.DomainController{
				{Type: "usb", Model: "qemu-xhci"},
			},
			Disks: []libvirtxml.DomainDisk{
				{
					Device: "disk",
					Driver: &libvirtxml.DomainDiskDriver{
						Name: "qemu",
						Type: "qcow2",
					},
					Source: &libvirtxml.DomainDiskSource{
						File: &libvirtxml.DomainDiskSourceFile{File: d.DiskPath()},
					},
					Target: &libvirtxml.DomainDiskTarget{
						Dev: "vda",
						Bus: "virtio",
					},
				},
			},
			Interfaces: []libvirtxml.DomainInterface{
				{
					Source: &libvirtxml.DomainInterfaceSource{
						Network: &libvirtxml.DomainInterfaceSourceNetwork{Network: network},
					},
					Model: &libvirtxml.DomainInterfaceModel{Type: "virtio"},
				},
			},
			Inputs: []libvirtxml.DomainInput{
				{Type: "tablet", Bus: "usb"},
			},
			Graphics: []libvirtxml.DomainGraphic{
				{
					VNC: &libvirtxml.DomainGraphicVNC{
						Port:     -1,
						AutoPort: "yes",
					},
				},
			},
			Videos: []libvirtxml.DomainVideo{
				{Model: libvirtxml.DomainVideoModel{Type: "virtio"}},
			},
			MemBalloon: &libvirtxml.DomainMemBalloon{
				Model: "virtio",
			},
		},
	}

	if opts.ISOPath != "" {
		domain.Devices.Disks = append(domain.Devices.Disks, libvirtxml.DomainDisk{
			Device: "cdrom",
			Driver: &libvirtxml.DomainDiskDriver{
				Name: "qemu",
				Type: "raw",
			},
			Source: &libvirtxml.DomainDiskSource{
				File: &libvirtxml.DomainDiskSourceFile{File: opts.ISOPath},
			},
			Target: &libvirtxml.DomainDiskTarget{
				Dev: "sda",
				Bus: "sata",
			},
			ReadOnly: &libvirtxml.DomainDiskReadOnly{},
		})
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain XML: %w", err)
	}

	return xml, nil
}
