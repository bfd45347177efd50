package status

import "fmt"

// TransitionToRunning transitions the VM phase to Running.
// This should be called when the backend has started the VM.
func TransitionToRunning(s *Status) error {
	// Can only transition from Stopped to Running
	if s.Phase != PhaseStopped {
		return fmt.Errorf("cannot transition to Running from phase %s", s.Phase)
	}

	s.set(PhaseRunning, "Started", "VM was started")
	return nil
}

// TransitionToStopped transitions the VM phase to Stopped.
// This should be called when the backend has stopped the VM.
func TransitionToStopped(s *Status) error {
	// Can only transition from Running to Stopped
	if s.Phase != PhaseRunning {
		return fmt.Errorf("cannot transition to Stopped from phase %s", s.Phase)
	}

	s.set(PhaseStopped, "Stopped", "VM was stopped")
	return nil
}

// Observe overwrites the phase with one reported by the backend or
// assumed by the caller. Any phase may be observed from any other.
func Observe(s *Status, phase Phase, reason string) {
	s.set(phase, reason, fmt.Sprintf("VM observed %s", phase))
}

// IsRunning returns true if the VM is in a running state.
func IsRunning(phase Phase) bool {
	return phase == PhaseRunning
}
