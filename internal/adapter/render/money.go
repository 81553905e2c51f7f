package render

import (
	"math"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

const zeroMoney = "$0.00"

// Money prefers the upstream display string and falls back to a dollar
// amount with two decimals. Missing or unusable values render as $0.00.
func Money(display string, v float64) string {
	if display != "" {
		return display
	}
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return zeroMoney
	}
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// CartTotal is the grand total shown for c. An empty cart always totals
// $0.00 whatever the upstream reports.
func CartTotal(c domain.Cart) string {
	if len(c.Items) == 0 {
		return zeroMoney
	}
	return Money(c.TotalDisplay, c.Total)
}
