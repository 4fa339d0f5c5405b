package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Derive computes the report for a single record. Headcount of zero (or less)
// yields zero per-capita figures instead of dividing.
func Derive(r MonthlyRecord) MonthlyReport {
	totalExpenses := decimal.Zero
	for _, e := range r.Expenses {
		totalExpenses = totalExpenses.Add(e.Amount)
	}
	totalCost := r.LaborCost.Add(totalExpenses)

	avgRevenue, avgCost := decimal.Zero, decimal.Zero
	if r.Headcount > 0 {
		hc := decimal.NewFromInt(int64(r.Headcount))
		avgRevenue = r.Revenue.Div(hc)
		avgCost = totalCost.Div(hc)
	}

	return MonthlyReport{
		MonthlyRecord: r.Clone(),
		TotalExpenses: totalExpenses,
		TotalCost:     totalCost,
		Profit:        r.Revenue.Sub(totalCost),
		AvgRevenue:    avgRevenue,
		AvgCost:       avgCost,
	}
}

// DeriveAll returns one report per record ordered by month key using plain
// string comparison.
func DeriveAll(records []MonthlyRecord) []MonthlyReport {
	reports := make([]MonthlyReport, 0, len(records))
	for _, r := range records {
		reports = append(reports, Derive(r))
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return strings.Compare(reports[i].Month, reports[j].Month) < 0
	})
	return reports
}

// CategoryTotals sums expense amounts per category across reports. Every known
// category is present in the result, in Categories order.
func CategoryTotals(reports []MonthlyReport) []CategoryAmount {
	sums := make(map[Category]decimal.Decimal, 3)
	for _, rep := range reports {
		for _, e := range rep.Expenses {
			sums[e.Category] = sums[e.Category].Add(e.Amount)
		}
	}
	out := make([]CategoryAmount, 0, len(sums))
	for _, c := range Categories() {
		out = append(out, CategoryAmount{Category: c, Amount: sums[c]})
		delete(sums, c)
	}
	// Unknown categories trail in key order so totals still add up.
	rest := make([]string, 0, len(sums))
	for c := range sums {
		rest = append(rest, string(c))
	}
	sort.Strings(rest)
	for _, c := range rest {
		out = append(out, CategoryAmount{Category: Category(c), Amount: sums[Category(c)]})
	}
	return out
}
