package payrollrun

import (
	"github.com/shopspring/decimal"
)

type InitiateRunRequest struct {
	PayrollPeriod string `json:"payroll_period" binding:"required"`
	Entity        string `json:"entity" binding:"required"`
	SpecialistID  string `json:"specialist_id" binding:"omitempty,uuid"`
	// Optional explicit run number; generated from the entity sequence when
	// absent.
	RunNumber string `json:"run_number"`
}

type EditPeriodRequest struct {
	PayrollPeriod string `json:"payroll_period" binding:"required"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type FreezeRequest struct {
	Reason *string `json:"reason"`
}

type UnfreezeRequest struct {
	Reason *string `json:"reason"`
}

// RecalculateEmployeeRequest carries the employee payload for a single-row
// recalculation. Unset overrides fall back to the pay-grade reference chain.
type RecalculateEmployeeRequest struct {
	BaseSalary              *decimal.Decimal `json:"base_salary"`
	HousingAllowance        *decimal.Decimal `json:"housing_allowance"`
	TransportationAllowance *decimal.Decimal `json:"transportation_allowance"`
	OtherAllowances         *decimal.Decimal `json:"other_allowances"`
	LeaveCompensation       *decimal.Decimal `json:"leave_compensation"`
	BankName                *string          `json:"bank_name"`
	BankAccountNumber       *string          `json:"bank_account_number"`
}

const (
	AdjustmentTypeBonus     = "bonus"
	AdjustmentTypeDeduction = "deduction"
	AdjustmentTypeBenefit   = "benefit"
)

type AdjustmentRequest struct {
	Type   string          `json:"type" binding:"required,oneof=bonus deduction benefit"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason *string         `json:"reason"`
}

type ResolveExceptionRequest struct {
	Note *string `json:"note"`
}

type RunResponse struct {
	ID                  string  `json:"id"`
	RunNumber           string  `json:"run_number"`
	PayrollPeriod       string  `json:"payroll_period"`
	Entity              string  `json:"entity"`
	Status              string  `json:"status"`
	Employees           int     `json:"employees"`
	Exceptions          int     `json:"exceptions"`
	TotalNetPay         string  `json:"total_net_pay"`
	PaymentStatus       string  `json:"payment_status"`
	PayrollSpecialistID string  `json:"payroll_specialist_id"`
	PayrollManagerID    *string `json:"payroll_manager_id,omitempty"`
	FinanceStaffID      *string `json:"finance_staff_id,omitempty"`
	RejectionReason     *string `json:"rejection_reason,omitempty"`
	UnlockReason        *string `json:"unlock_reason,omitempty"`
	ManagerApprovalDate *string `json:"manager_approval_date,omitempty"`
	FinanceApprovalDate *string `json:"finance_approval_date,omitempty"`
}

type DetailResponse struct {
	ID         string  `json:"id"`
	RunID      string  `json:"run_id"`
	EmployeeID string  `json:"employee_id"`
	BaseSalary string  `json:"base_salary"`
	Allowances string  `json:"allowances"`
	Deductions string  `json:"deductions"`
	Bonus      string  `json:"bonus"`
	Benefit    string  `json:"benefit"`
	NetSalary  string  `json:"net_salary"`
	NetPay     string  `json:"net_pay"`
	BankStatus string  `json:"bank_status"`
	Exceptions *string `json:"exceptions,omitempty"`
}

// ApprovalPanelResponse is the read-only projection of a run's approval
// state for the manager/finance panels.
type ApprovalPanelResponse struct {
	RunID               string  `json:"run_id"`
	RunNumber           string  `json:"run_number"`
	Status              string  `json:"status"`
	PendingStage        string  `json:"pending_stage"`
	Employees           int     `json:"employees"`
	Exceptions          int     `json:"exceptions"`
	TotalNetPay         string  `json:"total_net_pay"`
	PayrollManagerID    *string `json:"payroll_manager_id,omitempty"`
	FinanceStaffID      *string `json:"finance_staff_id,omitempty"`
	ManagerApprovalDate *string `json:"manager_approval_date,omitempty"`
	FinanceApprovalDate *string `json:"finance_approval_date,omitempty"`
	RejectionReason     *string `json:"rejection_reason,omitempty"`
}

type GeneratePayslipsResponse struct {
	RunID   string `json:"run_id"`
	Count   int    `json:"count"`
	Skipped bool   `json:"skipped"`
}
