// Package memory keeps exported report tables in process.
package memory

import (
	"context"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/export"
)

// Exporter records the last exported table. It stands in for Google Sheets
// when no spreadsheet is configured.
type Exporter struct {
	mu       sync.Mutex
	header   []string
	rows     [][]any
	exports  int
	exported time.Time
}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportReports(_ context.Context, reports []core.MonthlyReport) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.header = export.Header()
	e.rows = export.Rows(reports)
	e.exports++
	e.exported = time.Now()
	return nil
}

// Table returns a copy of the last exported header and rows.
func (e *Exporter) Table() ([]string, [][]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	header := append([]string(nil), e.header...)
	rows := make([][]any, len(e.rows))
	for i, r := range e.rows {
		rows[i] = append([]any(nil), r...)
	}
	return header, rows
}

// Exports returns how many exports ran and when the last one finished.
func (e *Exporter) Exports() (int, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports, e.exported
}
