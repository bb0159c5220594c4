package similarity

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultAmountTolerance is the default relative tolerance for
// AmountsMatch.
const DefaultAmountTolerance = 0.01

var amountCleanRe = regexp.MustCompile(`[^0-9.\-]`)

// ParseAmount parses a currency-formatted string ("$1,234.50", "1234.50",
// "(500.00)" for negatives) into a decimal.Decimal.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	cleaned := amountCleanRe.ReplaceAllString(s, "")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg().Abs().Neg()
	}
	return d, true
}

// AmountsMatch returns 1.0 when a and b parse to amounts within the given
// relative tolerance of one another, 0.0 otherwise (including when either
// fails to parse). tolerance is relative to the larger absolute value.
func AmountsMatch(a, b string, tolerance float64) float64 {
	da, ok := ParseAmount(a)
	if !ok {
		return 0.0
	}
	db, ok := ParseAmount(b)
	if !ok {
		return 0.0
	}
	if da.Equal(db) {
		return 1.0
	}
	diff := da.Sub(db).Abs()
	base := da.Abs()
	if db.Abs().GreaterThan(base) {
		base = db.Abs()
	}
	if base.IsZero() {
		return 1.0
	}
	tol := decimal.NewFromFloat(tolerance)
	if diff.Div(base).LessThanOrEqual(tol) {
		return 1.0
	}
	return 0.0
}
