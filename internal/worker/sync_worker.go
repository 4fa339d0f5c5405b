// Package worker keeps external report copies in step with stored records.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/log"
	"finboard/internal/sheets"
)

// SyncWorker re-exports the full report table whenever it is triggered. It
// always reads records from storage, so a missed notification is repaired by
// the next trigger.
type SyncWorker struct {
	loader   ledger.Loader
	exporter sheets.ReportExporter
	logger   *log.Logger
	group    singleflight.Group

	mu         sync.Mutex
	requested  uint64 // trigger generation
	exported   uint64 // newest generation covered by a finished export
	lastExport time.Time
	lastCount  int
	failures   int
}

// Status describes the most recent export.
type Status struct {
	LastExport time.Time
	Reports    int
	Failures   int
}

func NewSyncWorker(loader ledger.Loader, exporter sheets.ReportExporter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		loader:   loader,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// ExportAll derives reports from the stored records and hands them to the
// exporter. It returns once an export that loaded records after the call
// began has finished. Callers arriving during an export share one follow-up
// export.
func (w *SyncWorker) ExportAll(ctx context.Context) (int, error) {
	w.mu.Lock()
	w.requested++
	gen := w.requested
	w.mu.Unlock()

	for {
		v, err, shared := w.group.Do("export", func() (any, error) {
			return w.drain(ctx)
		})
		if shared {
			w.logger.DebugContext(ctx, "Joined in-flight export")
		}
		if err != nil {
			return 0, err
		}

		w.mu.Lock()
		covered := w.exported >= gen
		w.mu.Unlock()
		if covered {
			return v.(int), nil
		}
	}
}

// drain exports until no trigger is newer than the last finished export.
func (w *SyncWorker) drain(ctx context.Context) (int, error) {
	for {
		w.mu.Lock()
		target := w.requested
		if w.exported >= target {
			n := w.lastCount
			w.mu.Unlock()
			return n, nil
		}
		w.mu.Unlock()

		if _, err := w.exportAll(ctx); err != nil {
			return 0, err
		}

		w.mu.Lock()
		if target > w.exported {
			w.exported = target
		}
		w.mu.Unlock()
	}
}

func (w *SyncWorker) exportAll(ctx context.Context) (int, error) {
	start := time.Now()
	records, err := w.loader.LoadRecords(ctx)
	if err != nil {
		w.recordFailure()
		return 0, fmt.Errorf("load records: %w", err)
	}

	reports := core.DeriveAll(records)
	if err := w.exporter.ExportReports(ctx, reports); err != nil {
		w.recordFailure()
		return 0, fmt.Errorf("export reports: %w", err)
	}

	w.mu.Lock()
	w.lastExport = time.Now()
	w.lastCount = len(reports)
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Exported reports",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(reports),
		log.FieldDuration, time.Since(start).Milliseconds())
	return len(reports), nil
}

// HandleRecordChange is the AMQP handler: any change triggers a full export.
func (w *SyncWorker) HandleRecordChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	w.logger.InfoContext(ctx, "Record change received",
		"action", msg.Action,
		log.FieldRecordID, msg.RecordID,
		log.FieldVersion, msg.Version)
	_, err := w.ExportAll(ctx)
	return err
}

func (w *SyncWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{LastExport: w.lastExport, Reports: w.lastCount, Failures: w.failures}
}

func (w *SyncWorker) recordFailure() {
	w.mu.Lock()
	w.failures++
	w.mu.Unlock()
}
