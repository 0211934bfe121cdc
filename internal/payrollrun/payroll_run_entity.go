package payrollrun

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Run lifecycle statuses. The enum is closed: transitions are only legal
// through the service, never by writing free-text statuses.
const (
	StatusDraft                  = "DRAFT"
	StatusUnderReview            = "UNDER_REVIEW"
	StatusPendingManagerApproval = "PENDING_MANAGER_APPROVAL"
	StatusPendingFinanceApproval = "PENDING_FINANCE_APPROVAL"
	StatusApproved               = "APPROVED"
	StatusLocked                 = "LOCKED"
	StatusRejected               = "REJECTED"
	StatusUnlocked               = "UNLOCKED"
)

const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
)

const (
	BankStatusValid   = "VALID"
	BankStatusMissing = "MISSING"
)

// editableStatuses are the only states in which the run period may change.
var editableStatuses = map[string]bool{
	StatusDraft:    true,
	StatusRejected: true,
}

// PayrollRun is one payroll-processing cycle for one period and entity.
// Employees, Exceptions and TotalNetPay are derived aggregates over the
// detail set; they are recomputed by roll-up, never hand-edited.
//
// Migrations add a partial unique index on payroll_period + entity WHERE
// status <> 'REJECTED' (uq_payroll_runs_active_period) backing the
// no-two-active-runs-per-period guarantee under concurrent initiation.
type PayrollRun struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RunNumber string    `gorm:"type:varchar(30);not null;uniqueIndex:uq_payroll_runs_run_number"` // e.g. PR-2025-4821

	PayrollPeriod time.Time `gorm:"type:date;not null;index"`
	Entity        string    `gorm:"type:varchar(80);not null"`
	Status        string    `gorm:"type:varchar(30);not null;default:'DRAFT';index"`

	Employees   int             `gorm:"type:int;not null;default:0"`
	Exceptions  int             `gorm:"type:int;not null;default:0"`
	TotalNetPay decimal.Decimal `gorm:"type:numeric(16,2);not null;default:0"`

	PaymentStatus string `gorm:"type:varchar(20);not null;default:'PENDING'"`

	PayrollSpecialistID uuid.UUID  `gorm:"type:uuid;not null"`
	PayrollManagerID    *uuid.UUID `gorm:"type:uuid"`
	FinanceStaffID      *uuid.UUID `gorm:"type:uuid"`

	RejectionReason *string `gorm:"type:text"`
	UnlockReason    *string `gorm:"type:text"`

	ManagerApprovalDate *time.Time
	FinanceApprovalDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmployeePayrollDetail is one employee's calculation snapshot inside a run.
// NetPay mirrors NetSalary on a freshly built row; ad-hoc adjustments move
// NetPay (with Deductions/Bonus/Benefit in lockstep) without recomputation.
type EmployeePayrollDetail struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RunID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_payroll_details_run_employee"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_payroll_details_run_employee"`

	BaseSalary decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Allowances decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Deductions decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Bonus      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Benefit    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	NetSalary  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	NetPay     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	BankStatus string  `gorm:"type:varchar(20);not null;default:'VALID'"`
	Exceptions *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasExceptions reports whether the row carries a nonempty exception
// narrative.
func (d EmployeePayrollDetail) HasExceptions() bool {
	return d.Exceptions != nil && *d.Exceptions != ""
}
