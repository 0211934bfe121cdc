package payrollrunerrors

import (
	"net/http"

	"go-payroll/internal/shared/apperror"
)

var (
	ErrRunNotFound = apperror.New(
		apperror.CodeNotFound,
		"payroll run not found",
		http.StatusNotFound,
	)
	ErrEmployeeNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee not found",
		http.StatusNotFound,
	)
	ErrDetailNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee payroll detail not found for this run",
		http.StatusNotFound,
	)
	ErrInvalidPeriodFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid payroll_period format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrPeriodConflict = apperror.New(
		apperror.CodeConflict,
		"a non-rejected payroll run already exists for this period",
		http.StatusConflict,
	)
	ErrRunNumberConflict = apperror.New(
		apperror.CodeConflict,
		"a payroll run with this run number already exists",
		http.StatusConflict,
	)
	ErrPeriodNotEditable = apperror.New(
		apperror.CodeInvalidState,
		"payroll period can only be edited while the run is DRAFT or REJECTED",
		http.StatusConflict,
	)
	ErrPublishAfterApproval = apperror.New(
		apperror.CodeInvalidState,
		"an approved payroll run cannot be published for review",
		http.StatusConflict,
	)
	ErrApproveRejectedRun = apperror.New(
		apperror.CodeInvalidState,
		"a rejected payroll run cannot be approved",
		http.StatusConflict,
	)
	ErrManagerApprovalRequired = apperror.New(
		apperror.CodeInvalidState,
		"finance approval requires a prior manager approval",
		http.StatusConflict,
	)
	ErrRejectionReasonRequired = apperror.New(
		apperror.CodeInvalidInput,
		"reason is required when rejecting a payroll run",
		http.StatusBadRequest,
	)
	ErrFreezeRequiresApproved = apperror.New(
		apperror.CodeInvalidState,
		"only an APPROVED payroll run can be frozen",
		http.StatusConflict,
	)
	ErrUnfreezeRequiresLocked = apperror.New(
		apperror.CodeInvalidState,
		"only a LOCKED payroll run can be unlocked",
		http.StatusConflict,
	)
	ErrPayslipsRequireLocked = apperror.New(
		apperror.CodeInvalidState,
		"payslips can only be generated for a LOCKED payroll run",
		http.StatusConflict,
	)
	ErrRunLocked = apperror.New(
		apperror.CodeInvalidState,
		"payroll details are read-only once the run is locked",
		http.StatusConflict,
	)
	ErrNoPayslipsGenerated = apperror.New(
		apperror.CodeInvalidState,
		"freezing produced no payslips for this run",
		http.StatusConflict,
	)
	ErrConcurrentTransition = apperror.New(
		apperror.CodeConflict,
		"payroll run status changed concurrently, retry the operation",
		http.StatusConflict,
	)
	ErrInvalidAdjustmentType = apperror.New(
		apperror.CodeInvalidInput,
		"adjustment type must be one of bonus, deduction, benefit",
		http.StatusBadRequest,
	)
	ErrAmountRequired = apperror.New(
		apperror.CodeInvalidInput,
		"amount is required and must be positive",
		http.StatusBadRequest,
	)
)

// DraftBuildFailed wraps a draft generation failure. By the time it is
// returned the run has already been parked in REJECTED with the reason
// recorded, so the caller sees both the failure and a consistent run.
func DraftBuildFailed(err error) error {
	return apperror.Wrap(err,
		apperror.CodeCalculationError,
		"draft generation failed, payroll run rejected",
		http.StatusUnprocessableEntity,
	)
}
