package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ReasonMissingBankDetails = "Missing bank details"
	ReasonNegativeNetPay     = "Negative net pay"
	ReasonZeroBaseSalary     = "Zero base salary"
	ReasonExcessivePenalties = "Excessive penalties"
)

// Penalties above this share of gross salary are flagged.
var excessivePenaltyRatio = decimal.RequireFromString("0.5")

// Detect evaluates one calculated employee record against the data-quality
// and business rules and returns the ordered list of exception reasons. An
// empty list means a clean record. When calcErr is non-nil the failure is
// captured as a reason instead of aborting the batch.
func Detect(in EmployeeInput, b Breakdown, calcErr error) []string {
	var reasons []string

	if calcErr != nil {
		reasons = append(reasons, fmt.Sprintf("Calculation error: %s", calcErr.Error()))
	}

	if in.BankName == "" || in.BankAccountNumber == "" {
		reasons = append(reasons, ReasonMissingBankDetails)
	}

	if calcErr == nil {
		// Defense in depth: Calculate already rejects negative net pay.
		if b.NetSalary.IsNegative() {
			reasons = append(reasons, ReasonNegativeNetPay)
		}

		if b.BaseSalary.LessThanOrEqual(decimal.Zero) {
			reasons = append(reasons, ReasonZeroBaseSalary)
		}

		if b.GrossSalary.GreaterThan(decimal.Zero) &&
			b.Penalties.GreaterThan(b.GrossSalary.Mul(excessivePenaltyRatio)) {
			reasons = append(reasons, ReasonExcessivePenalties)
		}
	}

	return reasons
}
