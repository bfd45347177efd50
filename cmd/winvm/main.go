package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbweber/winvm/internal/backend"
	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/disk"
	"github.com/jbweber/winvm/internal/hostexec"
	"github.com/jbweber/winvm/internal/logging"
	"github.com/jbweber/winvm/internal/status"
	"github.com/jbweber/winvm/internal/vm"
)

var (
	version = "dev"
	commit  = "unknown"
)

const defaultVMName = "WindowsVM"

// Global flags
var (
	configPath  string
	backendName string
	storageRoot string
	logLevel    string
	logFormat   string
)

// Loaded by the root command before any subcommand runs.
var (
	settings *config.Settings
	logger   *slog.Logger
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "winvm",
	Short: "winvm - Windows VM manager for KVM, Hyper-V and VirtualBox",
	Long: `winvm creates, starts, stops and deletes a Windows virtual machine using
whichever hypervisor the host has: KVM/QEMU on Linux, Hyper-V on Windows,
and VirtualBox everywhere else.

Each VM lives in its own directory under the storage root
($HOME/VirtualMachines by default).`,
	Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/winvm/config.yaml)")
	pf.StringVar(&backendName, "backend", "", "backend: auto, kvm, hyperv, virtualbox")
	pf.StringVar(&storageRoot, "storage-root", "", "directory holding one subdirectory per VM")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: text, json")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads settings, applies flag overrides, configures logging and
// makes sure the storage root exists.
func setup(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	var err error
	if configPath != "" {
		settings, err = config.LoadFromFile(path)
	} else {
		settings, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyFlags(settings); err != nil {
		return err
	}

	logger, err = logging.Setup(cmd.ErrOrStderr(), logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
	})
	if err != nil {
		return err
	}

	if cmd == versionCmd {
		return nil
	}

	root, err := settings.ResolveStorageRoot()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, disk.DirPermissions); err != nil {
		return fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	settings.StorageRoot = root
	return nil
}

func applyFlags(s *config.Settings) error {
	if backendName != "" {
		kind, ok, err := backend.ParseKind(backendName)
		if err != nil {
			return err
		}
		s.Backend = config.BackendAuto
		if ok {
			s.Backend = string(kind)
		}
	}
	if storageRoot != "" {
		s.StorageRoot = storageRoot
	}
	if logLevel != "" {
		s.LogLevel = logLevel
	}
	if logFormat != "" {
		s.LogFormat = logFormat
	}

	s.Normalize()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func localHost() backend.Host {
	host := backend.LocalHost(hostexec.NewExec(logger))
	host.PowerShell = settings.PowerShell
	return host
}

// descriptorFor builds the descriptor for --name, placing it in --path when
// given.
func descriptorFor(name, path string) (*config.Descriptor, error) {
	d, err := config.NewDescriptor(name, settings)
	if err != nil {
		return nil, err
	}
	if path != "" {
		d.StorageDir = path
	}
	return d, nil
}

func openController(ctx context.Context, d *config.Descriptor, opts ...vm.Option) (*vm.Controller, error) {
	opts = append([]vm.Option{vm.WithLogger(logger)}, opts...)
	return vm.Open(ctx, d, settings, localHost(), opts...)
}

// report prints a successful result and turns a failed one into the
// command's error.
func report(w io.Writer, res vm.Result) error {
	if !res.OK {
		return errors.New(res.Message)
	}
	_, _ = fmt.Fprintln(w, res.Message)
	return nil
}

// Lifecycle command flags
var (
	vmName        string
	vmPath        string
	isoPath       string
	memoryMB      int
	diskSize      string
	cpus          int
	assumeRunning bool
	assumeYes     bool
)

func addVMFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&vmName, "name", defaultVMName, "name of the VM")
	cmd.Flags().StringVar(&vmPath, "path", "", "directory holding the VM files (default <storage-root>/<name>)")
}

func init() {
	addVMFlags(createCmd)
	createCmd.Flags().IntVar(&memoryMB, "memory", 0, "memory in MB (default from config, 4096)")
	createCmd.Flags().StringVar(&diskSize, "disk", "", "disk size, e.g. 50G (default from config)")
	createCmd.Flags().StringVar(&isoPath, "iso", "", "path to the Windows installer ISO (required)")
	createCmd.Flags().IntVar(&cpus, "cpus", 0, "virtual CPUs (default from config, 2)")
	_ = createCmd.MarkFlagRequired("iso")

	addVMFlags(startCmd)
	startCmd.Flags().StringVar(&isoPath, "iso", "", "ISO to attach for this boot")

	addVMFlags(stopCmd)
	stopCmd.Flags().BoolVar(&assumeRunning, "assume-running", false, "skip the power-state query and treat the VM as running")

	addVMFlags(deleteCmd)
	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a VM",
	Long: `Create a new Windows VM: its directory, its disk and, on Hyper-V and
VirtualBox, the registered machine with the installer ISO attached.

Example:
  winvm create --name Win11Test --memory 8192 --disk 64G --iso ~/Downloads/Win11.iso`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := descriptorFor(vmName, vmPath)
		if err != nil {
			return err
		}
		if memoryMB != 0 {
			d.MemoryMB = memoryMB
		}
		if diskSize != "" {
			d.DiskSize = diskSize
		}
		if cpus != 0 {
			d.CPUs = cpus
		}
		d.ISOPath = isoPath

		ctx := cmd.Context()
		c, err := openController(ctx, d)
		if err != nil {
			return err
		}
		return report(cmd.OutOrStdout(), c.Create(ctx))
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a VM",
	Long: `Start an existing VM.

On KVM an --iso is attached as a CD-ROM, and booted from while the disk is
still nearly empty. Hyper-V and VirtualBox use the ISO attached at create.`,
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
		return report(cmd.OutOrStdout(), c.Start(ctx, isoPath))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a VM",
	Long: `Stop a running VM.

The backend is asked for the VM's power state first. --assume-running skips
that query, which helps when the backend cannot report state reliably.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := descriptorFor(vmName, vmPath)
		if err != nil {
			return err
		}

		var opts []vm.Option
		if assumeRunning {
			opts = append(opts, vm.WithAssumedState(status.PhaseRunning))
		}

		ctx := cmd.Context()
		c, err := openController(ctx, d, opts...)
		if err != nil {
			return err
		}
		return report(cmd.OutOrStdout(), c.Stop(ctx))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a VM",
	Long: `Delete a VM.

This will:
- Stop the VM if running
- Unregister it from the hypervisor (Hyper-V, VirtualBox)
- Delete its disk
- Remove the VM directory`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := descriptorFor(vmName, vmPath)
		if err != nil {
			return err
		}

		if !assumeYes {
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Delete VM '%s' and all files in %s?", d.Name, d.StorageDir))
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
		}

		ctx := cmd.Context()
		c, err := openController(ctx, d)
		if err != nil {
			return err
		}
		res := c.Delete(ctx)
		for _, leftover := range res.Cleanup {
			logger.Warn("left behind", "path", leftover.Path, "error", leftover.Err)
		}
		return report(cmd.OutOrStdout(), res)
	},
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", question)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "winvm %s (commit: %s)\n", version, commit)
	},
}
