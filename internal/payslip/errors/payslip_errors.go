package paysliperrors

import (
	"net/http"

	"go-payroll/internal/shared/apperror"
)

var (
	ErrPayslipNotFound = apperror.New(
		apperror.CodeNotFound,
		"payslip not found",
		http.StatusNotFound,
	)
	ErrRunNotLocked = apperror.New(
		apperror.CodeInvalidState,
		"payslips can only be generated for a LOCKED payroll run",
		http.StatusConflict,
	)
	ErrAlreadyPaid = apperror.New(
		apperror.CodeInvalidState,
		"payslip is already marked as paid",
		http.StatusConflict,
	)
	ErrNotDistributable = apperror.New(
		apperror.CodeInvalidState,
		"only a payslip pending distribution can be distributed",
		http.StatusConflict,
	)
)
