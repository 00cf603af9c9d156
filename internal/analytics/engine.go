package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartxerox/internal/domain"
)

// UserOrders is one row of the order-count ranking.
type UserOrders struct {
	User   string
	Orders int
}

// Overview summarises the loaded dataset.
type Overview struct {
	Records      int
	First        time.Time
	Last         time.Time
	TotalRevenue decimal.Decimal
	Years        []int
}

// Engine computes aggregates over a read-only dataset. It never mutates the
// dataset, so a single Engine may be shared by concurrent readers.
type Engine struct {
	orders []domain.Order
}

func NewEngine(ds *domain.Dataset) *Engine {
	if ds == nil {
		return &Engine{}
	}
	return &Engine{orders: ds.Orders}
}

func (e *Engine) PagesSoldByYear(year int) int {
	total := 0
	for _, o := range e.orders {
		if o.Date.Year() == year {
			total += o.Pages
		}
	}
	return total
}

func (e *Engine) RevenueByYear(year int) decimal.Decimal {
	return e.sumByYear(year, func(o domain.Order) decimal.Decimal { return o.TotalAmount })
}

func (e *Engine) AppProfitByYear(year int) decimal.Decimal {
	return e.sumByYear(year, func(o domain.Order) decimal.Decimal { return o.AppEarning })
}

func (e *Engine) ShopProfitByYear(year int) decimal.Decimal {
	return e.sumByYear(year, func(o domain.Order) decimal.Decimal { return o.ShopEarning })
}

// TopUsersByOrders ranks every user by order count across all years, highest
// first, ties by name ascending. Truncation is left to the caller.
func (e *Engine) TopUsersByOrders() []UserOrders {
	counts := make(map[string]int)
	for _, o := range e.orders {
		counts[o.UserName]++
	}

	result := make([]UserOrders, 0, len(counts))
	for user, n := range counts {
		result = append(result, UserOrders{User: user, Orders: n})
	}
	slices.SortFunc(result, func(a, b UserOrders) int {
		if a.Orders > b.Orders {
			return -1
		}
		if a.Orders < b.Orders {
			return 1
		}
		return strings.Compare(a.User, b.User)
	})
	return result
}

// Years lists the distinct calendar years present, ascending.
func (e *Engine) Years() []int {
	seen := make(map[int]struct{})
	for _, o := range e.orders {
		seen[o.Date.Year()] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

func (e *Engine) Overview() Overview {
	ov := Overview{Records: len(e.orders), TotalRevenue: decimal.Zero, Years: e.Years()}
	for i, o := range e.orders {
		if i == 0 || o.Date.Before(ov.First) {
			ov.First = o.Date
		}
		if i == 0 || o.Date.After(ov.Last) {
			ov.Last = o.Date
		}
		ov.TotalRevenue = ov.TotalRevenue.Add(o.TotalAmount)
	}
	return ov
}

func (e *Engine) sumByYear(year int, value func(domain.Order) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, o := range e.orders {
		if o.Date.Year() == year {
			total = total.Add(value(o))
		}
	}
	return total
}
