// Package config holds winvm's user settings and the per-operation VM
// descriptor built from them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/winvm/internal/naming"
)

const (
	// BackendAuto selects the backend by inspecting the host.
	BackendAuto = "auto"

	// StateModeQuery asks the backend for the VM's power state.
	StateModeQuery = "query"
	// StateModeCached trusts the controller's in-memory run state only.
	StateModeCached = "cached"

	// DefaultMemoryMB is the default guest memory in megabytes.
	DefaultMemoryMB = 4096
	// DefaultDiskSize is the default disk size spec.
	DefaultDiskSize = "50G"
	// DefaultCPUs is the default virtual CPU count.
	DefaultCPUs = 2
	// DefaultSettleDelay is how long delete waits after stopping a running VM.
	DefaultSettleDelay = 2 * time.Second
	// DefaultLaunchWatch is how long a freshly launched QEMU process is
	// watched for an immediate exit.
	DefaultLaunchWatch = 500 * time.Millisecond
)

// Settings is the contents of the winvm configuration file. Every field is
// optional; Normalize fills in defaults.
type Settings struct {
	StorageRoot   string        `yaml:"storage_root,omitempty"`
	Backend       string        `yaml:"backend,omitempty"` // auto, kvm, hyperv, virtualbox
	MemoryMB      int           `yaml:"memory_mb,omitempty"`
	DiskSize      string        `yaml:"disk_size,omitempty"`
	CPUs          int           `yaml:"cpus,omitempty"`
	StateMode     string        `yaml:"state_mode,omitempty"` // query or cached
	SettleDelay   time.Duration `yaml:"settle_delay,omitempty"`
	LaunchWatch   time.Duration `yaml:"launch_watch,omitempty"`
	Headless      bool          `yaml:"headless,omitempty"` // VirtualBox only
	QEMU          QEMUSettings  `yaml:"qemu,omitempty"`
	PowerShell    string        `yaml:"powershell,omitempty"`
	VBoxManage    string        `yaml:"vboxmanage,omitempty"`
	LogLevel      string        `yaml:"log_level,omitempty"`
	LogFormat     string        `yaml:"log_format,omitempty"`
	LibvirtSocket string        `yaml:"libvirt_socket,omitempty"`
}

// QEMUSettings tunes the KVM backend's command lines.
type QEMUSettings struct {
	SystemBinary string `yaml:"system_binary,omitempty"`
	ImgBinary    string `yaml:"img_binary,omitempty"`
	Display      string `yaml:"display,omitempty"`
	Cores        int    `yaml:"cores,omitempty"`
	Threads      int    `yaml:"threads,omitempty"`
}

// backendAliases maps the alternate backend names accepted on the command
// line to the canonical ones.
var backendAliases = map[string]string{
	"qemu":    "kvm",
	"hyper-v": "hyperv",
	"vbox":    "virtualbox",
}

// Defaults returns settings with every default applied except the storage
// root, which depends on the environment (see ResolveStorageRoot).
func Defaults() *Settings {
	s := &Settings{}
	s.Normalize()
	return s
}

// Normalize lowercases enumerated values and fills unset fields with
// defaults.
func (s *Settings) Normalize() {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = BackendAuto
	}
	if canonical, ok := backendAliases[s.Backend]; ok {
		s.Backend = canonical
	}
	s.StateMode = strings.ToLower(strings.TrimSpace(s.StateMode))
	if s.StateMode == "" {
		s.StateMode = StateModeQuery
	}
	if s.MemoryMB == 0 {
		s.MemoryMB = DefaultMemoryMB
	}
	if s.DiskSize == "" {
		s.DiskSize = DefaultDiskSize
	}
	if s.CPUs == 0 {
		s.CPUs = DefaultCPUs
	}
	if s.SettleDelay == 0 {
		s.SettleDelay = DefaultSettleDelay
	}
	if s.LaunchWatch == 0 {
		s.LaunchWatch = DefaultLaunchWatch
	}
	if s.QEMU.SystemBinary == "" {
		s.QEMU.SystemBinary = "qemu-system-x86_64"
	}
	if s.QEMU.ImgBinary == "" {
		s.QEMU.ImgBinary = "qemu-img"
	}
	if s.QEMU.Display == "" {
		s.QEMU.Display = "gtk,grab-on-hover=on"
	}
	if s.QEMU.Cores == 0 {
		s.QEMU.Cores = 2
	}
	if s.QEMU.Threads == 0 {
		s.QEMU.Threads = 2
	}
	if s.PowerShell == "" {
		s.PowerShell = "powershell"
	}
	if s.VBoxManage == "" {
		s.VBoxManage = "VBoxManage"
	}
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	s.LogFormat = strings.ToLower(strings.TrimSpace(s.LogFormat))
	if s.LogFormat == "" {
		s.LogFormat = "text"
	}
}

// Validate checks the settings for errors. It does not check that the
// configured binaries exist; that is the doctor command's job.
func (s *Settings) Validate() error {
	switch s.Backend {
	case BackendAuto, "kvm", "hyperv", "virtualbox":
	default:
		return fmt.Errorf("backend must be one of auto, kvm, hyperv, virtualbox, got %q", s.Backend)
	}

	switch s.StateMode {
	case StateModeQuery, StateModeCached:
	default:
		return fmt.Errorf("state_mode must be %q or %q, got %q", StateModeQuery, StateModeCached, s.StateMode)
	}

	if s.MemoryMB <= 0 {
		return fmt.Errorf("memory_mb must be > 0, got %d", s.MemoryMB)
	}
	if _, err := naming.ParseSize(s.DiskSize); err != nil {
		return fmt.Errorf("disk_size: %w", err)
	}
	if s.CPUs <= 0 {
		return fmt.Errorf("cpus must be > 0, got %d", s.CPUs)
	}
	if s.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative, got %s", s.SettleDelay)
	}
	if s.LaunchWatch < 0 {
		return fmt.Errorf("launch_watch must not be negative, got %s", s.LaunchWatch)
	}
	if s.QEMU.Cores <= 0 || s.QEMU.Threads <= 0 {
		return fmt.Errorf("qemu: cores and threads must be > 0, got cores=%d threads=%d", s.QEMU.Cores, s.QEMU.Threads)
	}

	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", s.LogLevel)
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", s.LogFormat)
	}

	return nil
}

// ResolveStorageRoot returns the configured storage root, or
// $HOME/VirtualMachines when none is set.
func (s *Settings) ResolveStorageRoot() (string, error) {
	if s.StorageRoot != "" {
		return s.StorageRoot, nil
	}
	return naming.DefaultStorageRoot()
}

// DefaultPath returns the default settings file location,
// $XDG_CONFIG_HOME/winvm/config.yaml or its platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(dir, "winvm", "config.yaml"), nil
}

// LoadFromFile loads settings from a YAML file. The file must exist.
func LoadFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML parses, normalizes and validates settings.
func LoadFromYAML(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	s.Normalize()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &s, nil
}

// LoadOrDefault loads settings from path, returning defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Settings, error) {
	s, err := LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	return s, err
}
