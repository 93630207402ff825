// Package report aggregates sale and purchase records into the figures the
// admin and cashier dashboards show. Everything here is pure: callers load
// the records, these functions only fold them.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"bioxpos/internal/domain"
)

type DayBucket struct {
	Day     string  `json:"day"`
	Sales   int     `json:"sales"`
	Revenue float64 `json:"revenue"`
}

type CashierTotals struct {
	CashierID int64   `json:"cashier_id"`
	Username  string  `json:"username"`
	Sales     int     `json:"sales"`
	Revenue   float64 `json:"revenue"`
}

type Summary struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	TotalSales     int             `json:"total_sales"`
	Revenue        float64         `json:"revenue"`
	TotalPurchases int             `json:"total_purchases"`
	PurchaseCost   float64         `json:"purchase_cost"`
	Profit         float64         `json:"profit"`
	ByDay          []DayBucket     `json:"by_day"`
	ByCashier      []CashierTotals `json:"by_cashier"`
	TopPerformer   *CashierTotals  `json:"top_performer,omitempty"`
}

// SalesRevenue sums sale totals, rounded to two decimals.
func SalesRevenue(sales []domain.Sale) float64 {
	sum := decimal.Zero
	for _, sale := range sales {
		sum = sum.Add(decimal.NewFromFloat(sale.Total))
	}
	v, _ := sum.Round(2).Float64()
	return v
}

// PurchasesCost sums quantity times unit price over purchases, rounded to
// two decimals.
func PurchasesCost(purchases []domain.Purchase) float64 {
	sum := decimal.Zero
	for _, p := range purchases {
		sum = sum.Add(decimal.NewFromFloat(p.PurchasePrice).Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	v, _ := sum.Round(2).Float64()
	return v
}

// Profit is revenue minus cost. It goes negative when purchases outweigh
// sales in the window.
func Profit(revenue, cost float64) float64 {
	return domain.CashChange(revenue, cost)
}

// AggregateByDay buckets sales by local calendar day. Buckets appear in the
// order their day is first seen in the input, matching a chronological input
// with chronological output.
func AggregateByDay(sales []domain.Sale) []DayBucket {
	buckets := make([]DayBucket, 0)
	index := make(map[string]int)
	for _, sale := range sales {
		day := sale.CreatedAt.Local().Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(buckets)
			index[day] = i
			buckets = append(buckets, DayBucket{Day: day})
		}
		buckets[i].Sales++
		buckets[i].Revenue = add2(buckets[i].Revenue, sale.Total)
	}
	return buckets
}

// AggregateByCashier totals sales per cashier, ordered by cashier id
// ascending. Cashiers with no sales in the window are omitted.
func AggregateByCashier(sales []domain.Sale, cashiers []domain.User) []CashierTotals {
	totals := make([]CashierTotals, 0, len(cashiers))
	for _, cashier := range cashiers {
		t := CashierTotals{CashierID: cashier.ID, Username: cashier.Username}
		for _, sale := range sales {
			if sale.CashierID != cashier.ID {
				continue
			}
			t.Sales++
			t.Revenue = add2(t.Revenue, sale.Total)
		}
		if t.Sales == 0 {
			continue
		}
		totals = append(totals, t)
	}
	return totals
}

// TopPerformer picks the cashier with the strictly greatest sale count. On a
// tie the entry with the lowest cashier id wins, which is the first one in
// the id-ordered input. Returns nil when there are no totals.
func TopPerformer(totals []CashierTotals) *CashierTotals {
	var top *CashierTotals
	for i := range totals {
		if top == nil || totals[i].Sales > top.Sales {
			top = &totals[i]
		}
	}
	if top == nil {
		return nil
	}
	out := *top
	return &out
}

// Build assembles the full summary for a reporting window.
func Build(from, to time.Time, sales []domain.Sale, purchases []domain.Purchase, cashiers []domain.User) Summary {
	revenue := SalesRevenue(sales)
	cost := PurchasesCost(purchases)
	byCashier := AggregateByCashier(sales, cashiers)
	return Summary{
		From:           from,
		To:             to,
		TotalSales:     len(sales),
		Revenue:        revenue,
		TotalPurchases: len(purchases),
		PurchaseCost:   cost,
		Profit:         Profit(revenue, cost),
		ByDay:          AggregateByDay(sales),
		ByCashier:      byCashier,
		TopPerformer:   TopPerformer(byCashier),
	}
}

func add2(a, b float64) float64 {
	v, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).Float64()
	return v
}
