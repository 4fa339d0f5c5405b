package http

import (
	"html/template"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

type dashboardData struct {
	Latest    core.MonthlyReport
	HasLatest bool
	Reports   []core.MonthlyReport
	Currency  string
}

type entryData struct {
	Record     core.MonthlyRecord
	Editing    bool
	Categories []core.Category
	Rows       []expenseRow
}

type expenseRow struct {
	Category core.Category
	Amount   string
}

// blankExpenseRows is how many empty expense rows the entry form offers.
const blankExpenseRows = 3

func newEntryData(rec core.MonthlyRecord, editing bool) entryData {
	rows := make([]expenseRow, 0, len(rec.Expenses)+blankExpenseRows)
	for _, e := range rec.Expenses {
		rows = append(rows, expenseRow{Category: e.Category, Amount: e.Amount.String()})
	}
	for i := 0; i < blankExpenseRows; i++ {
		rows = append(rows, expenseRow{Category: core.CategoryOperating})
	}
	if !editing {
		rec.Headcount = 1
	}
	return entryData{Record: rec, Editing: editing, Categories: core.Categories(), Rows: rows}
}

// chartData feeds the three dashboard charts and the category breakdown.
type chartData struct {
	Currency   string          `json:"currency"`
	Labels     []string        `json:"labels"`
	Profit     []float64       `json:"profit"`
	Revenue    []float64       `json:"revenue"`
	TotalCost  []float64       `json:"totalCost"`
	AvgRevenue []float64       `json:"avgRevenue"`
	AvgCost    []float64       `json:"avgCost"`
	Categories []categoryPoint `json:"categories"`
}

type categoryPoint struct {
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Amount   float64 `json:"amount"`
}

func buildChartData(reports []core.MonthlyReport, currency string) chartData {
	n := len(reports)
	cd := chartData{
		Currency:   currency,
		Labels:     make([]string, 0, n),
		Profit:     make([]float64, 0, n),
		Revenue:    make([]float64, 0, n),
		TotalCost:  make([]float64, 0, n),
		AvgRevenue: make([]float64, 0, n),
		AvgCost:    make([]float64, 0, n),
		Categories: []categoryPoint{},
	}
	for _, rep := range reports {
		cd.Labels = append(cd.Labels, rep.Month)
		cd.Profit = append(cd.Profit, chartValue(rep.Profit))
		cd.Revenue = append(cd.Revenue, chartValue(rep.Revenue))
		cd.TotalCost = append(cd.TotalCost, chartValue(rep.TotalCost))
		cd.AvgRevenue = append(cd.AvgRevenue, chartValue(rep.AvgRevenue))
		cd.AvgCost = append(cd.AvgCost, chartValue(rep.AvgCost))
	}
	for _, ca := range core.CategoryTotals(reports) {
		cd.Categories = append(cd.Categories, categoryPoint{
			Category: string(ca.Category),
			Label:    ca.Category.Label(),
			Amount:   chartValue(ca.Amount),
		})
	}
	return cd
}

func chartValue(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func templateFuncs(f core.Formatter) template.FuncMap {
	return template.FuncMap{
		"money": f.Format,
		"whole": f.FormatWhole,
		"signClass": func(d decimal.Decimal) string {
			if d.IsNegative() {
				return "negative"
			}
			return "positive"
		},
		"categoryLabel": func(c core.Category) string { return c.Label() },
	}
}
