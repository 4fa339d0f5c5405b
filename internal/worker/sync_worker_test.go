package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/sheets/memory"
)

type staticLoader struct {
	records []core.MonthlyRecord
	err     error
}

func (l staticLoader) LoadRecords(context.Context) ([]core.MonthlyRecord, error) {
	return l.records, l.err
}

type blockingExporter struct {
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingExporter) ExportReports(_ context.Context, _ []core.MonthlyReport) error {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.entered)
	}
	<-b.release
	return nil
}

type failingExporter struct{}

func (failingExporter) ExportReports(context.Context, []core.MonthlyReport) error {
	return errors.New("quota exceeded")
}

func TestExportAll(t *testing.T) {
	exp := memory.New()
	w := NewSyncWorker(staticLoader{records: core.SampleRecords()}, exp, nil)

	n, err := w.ExportAll(context.Background())
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if n != 6 {
		t.Fatalf("exported %d reports, want 6", n)
	}
	_, rows := exp.Table()
	if len(rows) != 6 || rows[0][0] != "2023-08" || rows[5][0] != "2024-01" {
		t.Fatalf("rows not in month order: %v", rows)
	}
	if st := w.Status(); st.Reports != 6 || st.LastExport.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestExportAllErrors(t *testing.T) {
	w := NewSyncWorker(staticLoader{err: errors.New("db down")}, memory.New(), nil)
	if _, err := w.ExportAll(context.Background()); err == nil {
		t.Fatal("expected load error")
	}

	w = NewSyncWorker(staticLoader{records: core.SampleRecords()}, failingExporter{}, nil)
	if _, err := w.ExportAll(context.Background()); err == nil {
		t.Fatal("expected export error")
	}
	if w.Status().Failures != 1 {
		t.Fatalf("failures = %d", w.Status().Failures)
	}
}

func TestExportAllCoalescesConcurrentCalls(t *testing.T) {
	exp := &blockingExporter{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewSyncWorker(staticLoader{records: core.SampleRecords()}, exp, nil)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); _, _ = w.ExportAll(context.Background()) }()
	<-exp.entered
	for i := 0; i < 2; i++ {
		go func() { defer wg.Done(); _, _ = w.ExportAll(context.Background()) }()
	}
	time.Sleep(50 * time.Millisecond)
	close(exp.release)
	wg.Wait()

	// the in-flight export plus one shared rerun for the late callers
	if got := atomic.LoadInt32(&exp.calls); got != 2 {
		t.Fatalf("exporter called %d times, want 2", got)
	}
}

// gatedLoader returns its records, holding the first call after reading
// them until release is closed.
type gatedLoader struct {
	mu      sync.Mutex
	records []core.MonthlyRecord
	calls   int
	loaded  chan struct{}
	release chan struct{}
}

func (l *gatedLoader) add(r core.MonthlyRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

func (l *gatedLoader) LoadRecords(context.Context) ([]core.MonthlyRecord, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	out := append([]core.MonthlyRecord(nil), l.records...)
	l.mu.Unlock()
	if first {
		close(l.loaded)
		<-l.release
	}
	return out, nil
}

func TestHandleRecordChangeDuringExportIsExported(t *testing.T) {
	loader := &gatedLoader{loaded: make(chan struct{}), release: make(chan struct{})}
	exp := memory.New()
	w := NewSyncWorker(loader, exp, nil)

	scheduled := make(chan error, 1)
	go func() {
		_, err := w.ExportAll(context.Background())
		scheduled <- err
	}()
	<-loader.loaded

	loader.add(core.SampleRecords()[0])
	handled := make(chan error, 1)
	go func() {
		handled <- w.HandleRecordChange(context.Background(),
			amqp.NewRecordChangeMessage(amqp.ActionSaved, "1", "2023-08", 1))
	}()
	time.Sleep(20 * time.Millisecond)
	close(loader.release)

	if err := <-handled; err != nil {
		t.Fatalf("HandleRecordChange: %v", err)
	}
	_, rows := exp.Table()
	if len(rows) != 1 || rows[0][0] != "2023-08" {
		t.Fatalf("change not exported after ack: rows=%v", rows)
	}
	if err := <-scheduled; err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if st := w.Status(); st.Reports != 1 {
		t.Fatalf("status reports = %d, want 1", st.Reports)
	}
}

func TestHandleRecordChange(t *testing.T) {
	exp := memory.New()
	w := NewSyncWorker(staticLoader{records: core.SampleRecords()[:2]}, exp, nil)
	msg := amqp.NewRecordChangeMessage(amqp.ActionDeleted, "3", "", 9)
	if err := w.HandleRecordChange(context.Background(), msg); err != nil {
		t.Fatalf("HandleRecordChange: %v", err)
	}
	if n, _ := exp.Exports(); n != 1 {
		t.Fatalf("exports = %d, want 1", n)
	}
}
