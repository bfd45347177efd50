package status

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	s := New()
	if s.Phase != PhaseStopped {
		t.Errorf("new status phase = %s, want Stopped", s.Phase)
	}
	if s.LastTransitionTime.IsZero() {
		t.Error("LastTransitionTime should be set")
	}
}

func TestTransitionToRunning(t *testing.T) {
	tests := []struct {
		name      string
		phase     Phase
		wantError bool
	}{
		{
			name:  "valid transition from Stopped",
			phase: PhaseStopped,
		},
		{
			name:      "invalid transition from Running",
			phase:     PhaseRunning,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Status{Phase: tt.phase}

			err := TransitionToRunning(s)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				// Phase should not change on error
				if s.Phase != tt.phase {
					t.Errorf("Phase should not change on error, got %s", s.Phase)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if s.Phase != PhaseRunning {
				t.Errorf("Expected phase Running, got %s", s.Phase)
			}
			if s.Reason != "Started" {
				t.Errorf("Expected reason Started, got %s", s.Reason)
			}
		})
	}
}

func TestTransitionToStopped(t *testing.T) {
	tests := []struct {
		name      string
		phase     Phase
		wantError bool
	}{
		{
			name:  "valid transition from Running",
			phase: PhaseRunning,
		},
		{
			name:      "invalid transition from Stopped",
			phase:     PhaseStopped,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Status{Phase: tt.phase}

			err := TransitionToStopped(s)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				if s.Phase != tt.phase {
					t.Errorf("Phase should not change on error, got %s", s.Phase)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if s.Phase != PhaseStopped {
				t.Errorf("Expected phase Stopped, got %s", s.Phase)
			}
		})
	}
}

func TestObserve(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	s := &Status{Phase: PhaseStopped, LastTransitionTime: past}

	// Same phase: transition time must not move
	Observe(s, PhaseStopped, "BackendReported")
	if !s.LastTransitionTime.Equal(past) {
		t.Error("LastTransitionTime should not change when the phase does not")
	}
	if s.Reason != "BackendReported" {
		t.Errorf("Reason = %s, want BackendReported", s.Reason)
	}

	// Any phase may be observed, even without a valid transition
	Observe(s, PhaseRunning, "Assumed")
	if s.Phase != PhaseRunning {
		t.Errorf("Phase = %s, want Running", s.Phase)
	}
	if !s.LastTransitionTime.After(past) {
		t.Error("LastTransitionTime should move when the phase changes")
	}
}

func TestIsRunning(t *testing.T) {
	if !IsRunning(PhaseRunning) {
		t.Error("Running should be running")
	}
	if IsRunning(PhaseStopped) {
		t.Error("Stopped should not be running")
	}
}
