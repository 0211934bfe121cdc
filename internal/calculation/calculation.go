// Package calculation implements the per-employee salary math: gross salary
// assembly, the progressive tax walk, capped insurance, penalties and net pay.
// It is pure: no persistence, no clocks, decimal in / decimal out.
package calculation

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"go-payroll/internal/shared/apperror"
)

var (
	ErrInvalidCalculation = apperror.New(
		apperror.CodeCalculationError,
		"gross salary must not be negative",
		http.StatusUnprocessableEntity,
	)
	ErrNegativeNetPay = apperror.New(
		apperror.CodeCalculationError,
		"net pay must not be negative",
		http.StatusUnprocessableEntity,
	)
)

var (
	insuranceSalaryCap = decimal.NewFromInt(14700)
	insuranceRate      = decimal.RequireFromString("0.115")
)

// EmployeeInput is the validated calculation payload for one employee.
// Override fields, when set, win over the pay-grade reference data.
type EmployeeInput struct {
	EmployeeID uuid.UUID

	BaseSalaryOverride              *decimal.Decimal
	HousingAllowanceOverride        *decimal.Decimal
	TransportationAllowanceOverride *decimal.Decimal
	OtherAllowancesOverride         *decimal.Decimal

	LeaveCompensation decimal.Decimal

	BankName          string
	BankAccountNumber string
}

// PayGrade is the reference compensation data resolved for the employee.
type PayGrade struct {
	BaseSalary decimal.Decimal
	Allowances []Allowance
}

type Allowance struct {
	Name   string
	Amount decimal.Decimal
}

// ApprovedAddition is an approved signing bonus or termination/resignation
// benefit amount that joins the gross salary.
type ApprovedAddition struct {
	Label  string
	Amount decimal.Decimal
}

type PenaltyItem struct {
	Label  string
	Amount decimal.Decimal
}

// Breakdown is the full calculation result for one employee. Every monetary
// field is already rounded to 2 decimal places.
type Breakdown struct {
	BaseSalary              decimal.Decimal
	HousingAllowance        decimal.Decimal
	TransportationAllowance decimal.Decimal
	OtherAllowances         decimal.Decimal
	Bonus                   decimal.Decimal
	Benefit                 decimal.Decimal
	LeaveCompensation       decimal.Decimal
	GrossSalary             decimal.Decimal
	Tax                     decimal.Decimal
	Insurance               decimal.Decimal
	Penalties               decimal.Decimal
	NetSalary               decimal.Decimal
}

// TotalAllowances is the sum of the three allowance buckets.
func (b Breakdown) TotalAllowances() decimal.Decimal {
	return b.HousingAllowance.Add(b.TransportationAllowance).Add(b.OtherAllowances)
}

// ResolveBaseSalary prefers the explicit override, then the pay grade. An
// unresolvable base yields zero; the anomaly detector reports it, callers
// must not treat it as an error here.
func ResolveBaseSalary(in EmployeeInput, grade *PayGrade) decimal.Decimal {
	if in.BaseSalaryOverride != nil {
		return in.BaseSalaryOverride.Round(2)
	}
	if grade != nil {
		return grade.BaseSalary.Round(2)
	}
	return decimal.Zero
}

// ResolveAllowances classifies pay-grade allowances into housing /
// transportation / other buckets by case-insensitive name keyword. A housing
// or transportation match REPLACES the bucket (last match wins) while "other"
// accumulates; this mirrors long-standing production behavior and is kept for
// compatibility. Explicit overrides bypass the classification per bucket.
func ResolveAllowances(in EmployeeInput, grade *PayGrade) (housing, transportation, other decimal.Decimal) {
	housing = decimal.Zero
	transportation = decimal.Zero
	other = decimal.Zero

	if grade != nil {
		for _, a := range grade.Allowances {
			name := strings.ToLower(a.Name)
			switch {
			case strings.Contains(name, "housing"):
				housing = a.Amount
			case strings.Contains(name, "transport"):
				transportation = a.Amount
			default:
				other = other.Add(a.Amount)
			}
		}
	}

	if in.HousingAllowanceOverride != nil {
		housing = *in.HousingAllowanceOverride
	}
	if in.TransportationAllowanceOverride != nil {
		transportation = *in.TransportationAllowanceOverride
	}
	if in.OtherAllowancesOverride != nil {
		other = *in.OtherAllowancesOverride
	}

	return housing.Round(2), transportation.Round(2), other.Round(2)
}

// Insurance is the capped social-insurance deduction, computed off the BASE
// salary, not gross: min(base, 14700) * 11.5%.
func Insurance(baseSalary decimal.Decimal) decimal.Decimal {
	capped := baseSalary
	if capped.GreaterThan(insuranceSalaryCap) {
		capped = insuranceSalaryCap
	}
	if capped.IsNegative() {
		capped = decimal.Zero
	}
	return capped.Mul(insuranceRate).Round(2)
}

// SumPenalties totals the employee's penalty items. A missing penalty record
// is represented by an empty slice and yields zero.
func SumPenalties(items []PenaltyItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total.Round(2)
}

func sumAdditions(additions []ApprovedAddition) decimal.Decimal {
	total := decimal.Zero
	for _, a := range additions {
		total = total.Add(a.Amount)
	}
	return total
}

// Calculate runs the full salary pipeline for one employee:
// base -> allowances -> gross -> tax -> insurance -> penalties -> net.
// bonuses and benefits must already be filtered to APPROVED records.
func Calculate(
	in EmployeeInput,
	grade *PayGrade,
	bonuses []ApprovedAddition,
	benefits []ApprovedAddition,
	penalties []PenaltyItem,
) (Breakdown, error) {
	b := Breakdown{
		BaseSalary:        ResolveBaseSalary(in, grade),
		Bonus:             sumAdditions(bonuses).Round(2),
		Benefit:           sumAdditions(benefits).Round(2),
		LeaveCompensation: in.LeaveCompensation.Round(2),
	}
	b.HousingAllowance, b.TransportationAllowance, b.OtherAllowances = ResolveAllowances(in, grade)

	b.GrossSalary = b.BaseSalary.
		Add(b.HousingAllowance).
		Add(b.TransportationAllowance).
		Add(b.OtherAllowances).
		Add(b.Bonus).
		Add(b.Benefit).
		Add(b.LeaveCompensation).
		Round(2)

	if b.GrossSalary.IsNegative() {
		return Breakdown{}, ErrInvalidCalculation
	}

	b.Tax = Tax(b.GrossSalary)
	b.Insurance = Insurance(b.BaseSalary)
	b.Penalties = SumPenalties(penalties)

	b.NetSalary = b.GrossSalary.
		Sub(b.Tax).
		Sub(b.Insurance).
		Sub(b.Penalties).
		Round(2)

	if b.NetSalary.IsNegative() {
		return Breakdown{}, ErrNegativeNetPay
	}

	return b, nil
}
