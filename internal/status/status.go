// Package status tracks a VM's run state and validates transitions
// between phases.
package status

import "time"

// Phase is the run state a controller holds for its VM.
type Phase string

const (
	PhaseStopped Phase = "Stopped"
	PhaseRunning Phase = "Running"
)

// Status is the in-memory run state of one VM. It is never persisted.
type Status struct {
	Phase              Phase
	Reason             string
	Message            string
	LastTransitionTime time.Time
}

// New returns a Status in phase Stopped.
func New() *Status {
	return &Status{Phase: PhaseStopped, Reason: "Initial", LastTransitionTime: time.Now()}
}

// set records phase with its reason and message. LastTransitionTime only
// moves when the phase actually changes.
func (s *Status) set(phase Phase, reason, message string) {
	if s.Phase != phase {
		s.LastTransitionTime = time.Now()
	}
	s.Phase = phase
	s.Reason = reason
	s.Message = message
}
