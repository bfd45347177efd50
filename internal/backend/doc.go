// Package backend drives the hypervisor tooling behind a VM.
//
// Three backends are supported, each implemented as an Adapter that issues
// the backend's native commands through a hostexec.Runner:
//   - KVM: qemu-img and qemu-system-x86_64, stopped with pkill
//   - Hyper-V: PowerShell cmdlets
//   - VirtualBox: VBoxManage
//
// Detect picks a backend from the host platform; New constructs the Adapter
// for a Kind. Adapters are synchronous and stateless; run state is tracked
// by the caller (see internal/vm).
//
// Error Handling:
//
// Failures wrap one of the sentinel errors in errors.go so callers can
// classify them with errors.Is. Multi-step operations abort at the first
// failing step and report it as a *StepError; completed steps are not
// rolled back.
package backend
