package sheets

import (
	"context"

	"finboard/internal/core"
)

// ReportExporter publishes the full report table to an external sink. Each
// call replaces what the previous call wrote.
type ReportExporter interface {
	ExportReports(ctx context.Context, reports []core.MonthlyReport) error
}
