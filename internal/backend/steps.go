package backend

import (
	"context"
	"log/slog"
)

// Step is one named action of a multi-step backend operation.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Sequence is an ordered list of steps that runs until the first failure.
type Sequence struct {
	Operation string
	Steps     []Step
}

// Run executes the steps in order. The first failure stops the sequence
// and is returned as a *StepError. Steps that already ran are left in
// place.
func (s Sequence) Run(ctx context.Context, logger *slog.Logger) error {
	total := len(s.Steps)
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Index: i + 1, Total: total, Err: err}
		}

		logger.Info("running step", "operation", s.Operation, "step", step.Name, "index", i+1, "total", total)
		if err := step.Run(ctx); err != nil {
			logger.Error("step failed", "operation", s.Operation, "step", step.Name, "error", err)
			return &StepError{Step: step.Name, Index: i + 1, Total: total, Err: err}
		}
	}
	return nil
}
