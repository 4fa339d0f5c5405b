// Package export projects reports into tables for spreadsheets and files.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"finboard/internal/core"
)

// SheetName is the worksheet title used by every exporter.
const SheetName = "Reports"

// ContentTypeXLSX is the media type of WriteXLSX output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func Header() []string {
	return []string{
		"Month", "Revenue", "Labor Cost", "Other Expenses", "Total Cost",
		"Profit", "Headcount", "Avg Revenue", "Avg Cost",
	}
}

// Rows returns one row per report in Header order. Amounts are rounded to
// two decimals and given as float64 so spreadsheets treat them as numbers.
func Rows(reports []core.MonthlyReport) [][]any {
	rows := make([][]any, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []any{
			r.Month,
			amount(r.Revenue),
			amount(r.LaborCost),
			amount(r.TotalExpenses),
			amount(r.TotalCost),
			amount(r.Profit),
			r.Headcount,
			amount(r.AvgRevenue),
			amount(r.AvgCost),
		})
	}
	return rows
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// WriteXLSX writes a workbook with a single Reports sheet.
func WriteXLSX(w io.Writer, reports []core.MonthlyReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range Header() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
	}

	for i, row := range Rows(reports) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(Header()), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
