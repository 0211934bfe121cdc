package calculation

import "github.com/shopspring/decimal"

// taxBracket covers gross income in (lower, upper]; the last bracket is open.
type taxBracket struct {
	lower decimal.Decimal
	upper decimal.Decimal // zero upper means unbounded
	rate  decimal.Decimal
}

// Monthly brackets for the single supported jurisdiction; amounts in the
// run currency. The table is fixed, multi-jurisdiction config is a non-goal.
var taxBrackets = []taxBracket{
	{lower: dec(0), upper: dec(1250), rate: decimal.Zero},
	{lower: dec(1250), upper: dec(2500), rate: rate("0.025")},
	{lower: dec(2500), upper: dec(3750), rate: rate("0.10")},
	{lower: dec(3750), upper: dec(5000), rate: rate("0.15")},
	{lower: dec(5000), upper: dec(16667), rate: rate("0.20")},
	{lower: dec(16667), upper: dec(33333), rate: rate("0.225")},
	{lower: dec(33333), upper: decimal.Decimal{}, rate: rate("0.25")},
}

var taxFreeThreshold = dec(1250)

func dec(v int64) decimal.Decimal   { return decimal.NewFromInt(v) }
func rate(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// Tax applies the progressive bracket table to the monthly GROSS salary.
// Income at or below 1250 pays zero outright; above that, each bracket taxes
// the slice of remaining income falling inside its width until the income is
// exhausted. Result rounded to 2 decimal places.
func Tax(gross decimal.Decimal) decimal.Decimal {
	if gross.LessThanOrEqual(taxFreeThreshold) {
		return decimal.Zero
	}

	remaining := gross
	total := decimal.Zero

	for _, b := range taxBrackets {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		portion := remaining
		if !b.upper.IsZero() {
			width := b.upper.Sub(b.lower)
			if portion.GreaterThan(width) {
				portion = width
			}
		}

		total = total.Add(portion.Mul(b.rate))
		remaining = remaining.Sub(portion)
	}

	return total.Round(2)
}
