package analytics

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount with two decimal places. Sums are kept at full
// precision until this point.
func FormatMoney(symbol string, amount decimal.Decimal) string {
	return symbol + amount.StringFixed(2)
}

// FormatRanking renders at most limit ranking rows as "user: n orders" lines.
// A non-positive limit renders every row.
func FormatRanking(rows []UserOrders, limit int) string {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s: %d orders", r.User, r.Orders))
	}
	return strings.Join(lines, "\n")
}
