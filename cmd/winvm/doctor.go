package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/doctor"
	"github.com/jbweber/winvm/internal/libvirt"
)

var noColor bool

func init() {
	doctorCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	addVMFlags(exportCmd)
	exportCmd.Flags().StringVar(&isoPath, "iso", "", "attach this installer ISO as a CD-ROM")
	exportCmd.Flags().StringVar(&exportNetwork, "network", libvirt.DefaultNetwork, "libvirt network to attach to")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the host can run VMs",
	Long: `Check the active backend's prerequisites: the hypervisor tools on PATH,
/dev/kvm and libvirtd for KVM, and free space under the storage root.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		results := doctor.RunAll(cmd.Context(), doctor.Env{
			Host:     localHost(),
			Settings: settings,
		})

		if !doctor.PrintResults(results, cmd.OutOrStdout(), useColor(os.Stdout)) {
			return errors.New("some checks failed")
		}
		return nil
	},
}

// useColor reports whether doctor output to f should be colored.
func useColor(f *os.File) bool {
	return !noColor && term.IsTerminal(int(f.Fd()))
}

var exportNetwork string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print libvirt domain XML for a KVM VM",
	Long: `Print a libvirt domain definition that uses the VM's qcow2 disk in place,
so the VM can be managed with virsh or virt-manager:

  winvm export --name Win11Test > Win11Test.xml
  virsh define Win11Test.xml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := descriptorFor(vmName, vmPath)
		if err != nil {
			return err
		}

		usage, err := disk.Usage(d.DiskPath())
		if err != nil {
			return err
		}
		if !usage.Exists {
			return fmt.Errorf("%w: disk image %s", backend.ErrNotFound, d.DiskPath())
		}

		xml, err := libvirt.GenerateDomainXML(d, libvirt.DomainOptions{
			ISOPath:     isoPath,
			BootFromISO: backend.BootsFromISO(usage.Size),
			Network:     exportNetwork,
		})
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), xml)
		return nil
	},
}
