package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/media"
	"github.com/jbweber/winvm/internal/output"
	"github.com/jbweber/winvm/internal/vm"
)

// Output flags
var (
	outputFormat string
	noHeaders    bool
)

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, yaml, json")
	listCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")

	addVMFlags(infoCmd)
	infoCmd.Flags().StringVar(&isoPath, "iso", "", "also describe this installer ISO")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List VMs",
	Long: `List the VMs under the storage root.

Every subdirectory of the storage root is a VM. The disk columns describe
the disk artifact of the active backend.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML documents
  -o json   JSON array`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		kind, err := backend.Resolve(cmd.Context(), settings.Backend, localHost())
		if err != nil {
			return err
		}

		entries, err := vm.List(settings.StorageRoot, kind.DiskFormat())
		if err != nil {
			return fmt.Errorf("failed to list VMs: %w", err)
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		result, err := formatter.FormatEntryList(entries)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		_, _ = fmt.Fprint(cmd.OutOrStdout(), result)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show details about a VM",
	Long: `Show a VM's directory, disk usage and power state as reported by the
backend. With --iso, also read the installer ISO's volume label.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := descriptorFor(vmName, vmPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		c, err := openController(ctx, d)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Name: %s\n", d.Name)
		_, _ = fmt.Fprintf(out, "Backend: %s\n", c.Kind().DisplayName())
		_, _ = fmt.Fprintf(out, "Path: %s\n", d.StorageDir)

		usage, err := disk.Usage(c.DiskPath())
		if err != nil {
			return err
		}
		if usage.Exists {
			_, _ = fmt.Fprintf(out, "Disk: %s (%.1f MB used, last written %s)\n",
				filepath.Base(c.DiskPath()),
				float64(usage.Size)/(1024*1024),
				humanize.Time(usage.ModTime))
		} else {
			_, _ = fmt.Fprintln(out, "Disk: Disk not found")
		}

		state, err := c.PowerState(ctx)
		if err != nil {
			logger.Debug("power state query failed", "vm", d.Name, "error", err)
			state = backend.PowerUnknown
		}
		_, _ = fmt.Fprintf(out, "Status: %s\n", state)

		if isoPath != "" {
			info, err := media.Inspect(isoPath)
			if err != nil {
				return err
			}
			kind := "not a Windows installer"
			if info.IsWindowsInstaller() {
				kind = "Windows installer"
			}
			_, _ = fmt.Fprintf(out, "ISO: %s (%s, %s)\n", info.Label, kind, humanize.IBytes(uint64(info.Size)))
		}

		return nil
	},
}
