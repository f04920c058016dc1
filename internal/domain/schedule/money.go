package schedule

import (
	"github.com/shopspring/decimal"
)

// FormatAmount renders a minor-unit amount as "GHS 500.00".
func FormatAmount(minor int64, currency string) string {
	major := decimal.New(minor, -2).StringFixed(2)
	if currency == "" {
		return major
	}
	return currency + " " + major
}

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a major-unit string such as "1250.50" into minor units.
// More than two decimal places is rejected rather than rounded.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Message: "must be a number"}
	}
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, &ValidationError{Field: "amount", Message: "must have at most two decimal places"}
	}
	if !minor.IsPositive() {
		return 0, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	return minor.IntPart(), nil
}
