// Package renderer turns derived reports into markdown for terminals and
// chat-style outputs, and into HTML snippets via goldmark.
package renderer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"finboard/internal/core"
)

// ReportsMarkdown renders the report table followed by category totals.
func ReportsMarkdown(reports []core.MonthlyReport, f core.Formatter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Monthly Reports (%s)\n\n", f.Code())
	if len(reports) == 0 {
		fmt.Fprintln(&b, "_No records yet._")
		return b.String()
	}

	fmt.Fprintln(&b, "| Month | Revenue | Labor Cost | Other Expenses | Total Cost | Profit | Headcount | Avg Revenue | Avg Cost |")
	fmt.Fprintln(&b, "|:---|---:|---:|---:|---:|---:|---:|---:|---:|")
	for _, r := range reports {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %d | %s | %s |\n",
			r.Month,
			f.Format(r.Revenue),
			f.Format(r.LaborCost),
			f.Format(r.TotalExpenses),
			f.Format(r.TotalCost),
			f.Format(r.Profit),
			r.Headcount,
			f.FormatWhole(r.AvgRevenue),
			f.FormatWhole(r.AvgCost),
		)
	}

	fmt.Fprint(&b, "\n## Expenses by Category\n\n")
	fmt.Fprintln(&b, "| Category | Amount |")
	fmt.Fprintln(&b, "|:---|---:|")
	for _, c := range core.CategoryTotals(reports) {
		fmt.Fprintf(&b, "| %s | %s |\n", c.Category.Label(), f.Format(c.Amount))
	}
	return b.String()
}

// RecordMarkdown renders a single month with its expense lines.
func RecordMarkdown(r core.MonthlyReport, f core.Formatter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Month)
	if r.ID != "" {
		fmt.Fprintf(&b, "Record `%s`\n\n", r.ID)
	}

	fmt.Fprintln(&b, "| | Amount |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Revenue | %s |\n", f.Format(r.Revenue))
	fmt.Fprintf(&b, "| Labor Cost | %s |\n", f.Format(r.LaborCost))
	fmt.Fprintf(&b, "| Other Expenses | %s |\n", f.Format(r.TotalExpenses))
	fmt.Fprintf(&b, "| Total Cost | %s |\n", f.Format(r.TotalCost))
	fmt.Fprintf(&b, "| **Profit** | **%s** |\n", f.Format(r.Profit))
	fmt.Fprintf(&b, "| Headcount | %d |\n", r.Headcount)
	fmt.Fprintf(&b, "| Avg Revenue | %s |\n", f.FormatWhole(r.AvgRevenue))
	fmt.Fprintf(&b, "| Avg Cost | %s |\n", f.FormatWhole(r.AvgCost))

	if len(r.Expenses) > 0 {
		fmt.Fprint(&b, "\n## Expenses\n\n")
		for _, e := range r.Expenses {
			fmt.Fprintf(&b, "- %s: %s\n", e.Category.Label(), f.Format(e.Amount))
		}
	}
	return b.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML converts markdown produced by this package to an HTML fragment.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}
