package budget

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places amounts are stored with.
const MoneyPlaces = 2

// ParseAmount parses a plain decimal string such as "500" or "12.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// FormatMoney renders d as "$500" for whole amounts and "$12.50" otherwise.
func FormatMoney(d decimal.Decimal) string {
	d = d.Round(2)
	if d.Equal(d.Truncate(0)) {
		return "$" + d.StringFixed(0)
	}
	return "$" + d.StringFixed(2)
}
