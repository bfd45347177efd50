// Package libvirt covers the two places winvm touches libvirt: probing
// the local daemon for host diagnostics, and rendering a KVM VM's
// descriptor as domain XML so it can be imported with virsh define.
//
// Connections go over the local Unix socket via
// github.com/digitalocean/go-libvirt:
//
//	info, err := libvirt.QueryHost(ctx, "", 0)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(info.LibraryVersion)
//
// Domain XML is built with libvirt.org/go/libvirtxml and points at the
// qcow2 disk winvm created, so the VM's storage stays where it is:
//
//	xml, err := libvirt.GenerateDomainXML(desc, libvirt.DomainOptions{ISOPath: iso})
//
// winvm never defines domains itself; the KVM backend launches QEMU
// directly.
package libvirt
