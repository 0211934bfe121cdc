package payrollrun

import "context"

// GenerationResult reports one payslip-generation attempt for a run.
// Skipped is true when every slip already existed.
type GenerationResult struct {
	Count   int
	Skipped bool
}

// PayslipGenerator produces payslips for a locked run. Generation is
// idempotent per run and employee; repeat calls never duplicate slips.
type PayslipGenerator interface {
	GenerateForRun(ctx context.Context, runID string) (GenerationResult, error)
}
