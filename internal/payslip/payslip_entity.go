package payslip

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payslip lifecycle statuses.
const (
	StatusPending     = "PENDING"
	StatusDistributed = "DISTRIBUTED"
	StatusPaid        = "PAID"
)

// LineItem is one labelled amount inside a payslip section.
type LineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// EarningsDetails is the itemized earnings side of a payslip, persisted as
// one jsonb document.
type EarningsDetails struct {
	BaseSalary decimal.Decimal `json:"base_salary"`
	Allowances []LineItem      `json:"allowances"`
	Bonuses    []LineItem      `json:"bonuses"`
	Benefits   []LineItem      `json:"benefits"`
	Refunds    []LineItem      `json:"refunds"`
}

// DeductionsDetails is the itemized deductions side of a payslip.
type DeductionsDetails struct {
	Taxes      []LineItem `json:"taxes"`
	Insurances []LineItem `json:"insurances"`
	Penalties  []LineItem `json:"penalties"`
}

// Payslip is the immutable per-employee artifact cut from a locked run. One
// slip per run and employee, enforced by uq_payslips_run_employee.
type Payslip struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PayslipNumber string    `gorm:"type:varchar(30);not null;uniqueIndex:uq_payslips_number"`
	RunID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_payslips_run_employee"`
	EmployeeID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_payslips_run_employee"`

	PayrollPeriod time.Time `gorm:"type:date;not null"`
	Entity        string    `gorm:"type:varchar(80);not null"`

	Earnings   EarningsDetails   `gorm:"serializer:json;type:jsonb;not null"`
	Deductions DeductionsDetails `gorm:"serializer:json;type:jsonb;not null"`

	TotalGross      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	TotalDeductions decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	NetPay          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	Status        string     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	DistributedAt *time.Time
	PaidAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
