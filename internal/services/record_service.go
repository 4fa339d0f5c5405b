// Package services orchestrates the record store with its side-effect
// collaborators.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/log"
)

// Publisher announces record changes to other processes.
type Publisher interface {
	PublishRecordChange(ctx context.Context, msg *amqp.RecordChangeMessage) error
}

// RecordService applies mutations to the in-memory store first. Persistence
// and publishing follow; their failures are logged and never returned, so the
// store stays the source of truth for the running process.
//
// Mutations are serialised so the persister sees writes in store order.
type RecordService struct {
	mu        sync.Mutex
	store     *ledger.Store
	persister ledger.Persister
	publisher Publisher
	logger    *log.Logger
}

// NewRecordService wires the store with optional persister and publisher.
func NewRecordService(store *ledger.Store, persister ledger.Persister, publisher Publisher, logger *log.Logger) *RecordService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecordService{
		store:     store,
		persister: persister,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// Init fills the store. Persisted records win; an empty persister is seeded
// with seed so later restarts find the same data.
func (s *RecordService) Init(ctx context.Context, seed []core.MonthlyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister == nil {
		s.store.Replace(seed)
		s.logger.InfoContext(ctx, "Loaded seed records", log.FieldCount, len(seed))
		return nil
	}

	records, err := s.persister.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	if len(records) > 0 {
		s.store.Replace(records)
		s.logger.InfoContext(ctx, "Loaded persisted records", log.FieldCount, len(records))
		return nil
	}

	s.store.Replace(seed)
	var errs []error
	for _, r := range s.store.Records() {
		if err := s.persister.UpsertRecord(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("seed %s: %w", r.Month, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Seeded empty storage", log.FieldCount, len(seed))
	return nil
}

// SaveRecord upserts r by month and returns the stored record.
func (s *RecordService) SaveRecord(ctx context.Context, r core.MonthlyRecord) core.MonthlyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.store.SaveRecord(r)
	version := s.store.Version()

	fields := log.NewFields().
		WithOperation(log.OpSave).
		WithRecord(stored.ID, stored.Month, stored.Revenue.String(), stored.Headcount)

	if s.persister != nil {
		if err := s.persister.UpsertRecord(ctx, stored); err != nil {
			s.logger.Fields(ctx, slog.LevelError, "Failed to persist record", fields.WithError(err))
		}
	}
	s.publish(ctx, amqp.NewRecordChangeMessage(amqp.ActionSaved, stored.ID, stored.Month, version))

	s.logger.Fields(ctx, slog.LevelInfo, "Record saved", fields)
	return stored
}

// DeleteRecord removes the record with id. It reports whether anything was
// removed; unknown ids are a no-op.
func (s *RecordService) DeleteRecord(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.DeleteRecord(id) {
		return false
	}
	version := s.store.Version()

	if s.persister != nil {
		if err := s.persister.DeleteRecord(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "Failed to delete persisted record",
				log.FieldRecordID, id, log.FieldError, err)
		}
	}
	s.publish(ctx, amqp.NewRecordChangeMessage(amqp.ActionDeleted, id, "", version))

	s.logger.InfoContext(ctx, "Record deleted", log.FieldRecordID, id)
	return true
}

func (s *RecordService) GetRecordByMonth(_ context.Context, month string) (core.MonthlyRecord, bool) {
	return s.store.GetRecordByMonth(month)
}

// Reports returns the derived reports ordered by month.
func (s *RecordService) Reports(_ context.Context) []core.MonthlyReport {
	return s.store.Reports()
}

func (s *RecordService) Latest(_ context.Context) (core.MonthlyReport, bool) {
	return s.store.Latest()
}

// Snapshot returns the reports and their version from a single read.
func (s *RecordService) Snapshot(_ context.Context) ledger.Snapshot {
	return s.store.Snapshot()
}

func (s *RecordService) Version() uint64 {
	return s.store.Version()
}

func (s *RecordService) Stats() ledger.Stats {
	return s.store.Stats()
}

// Close releases collaborators that hold connections.
func (s *RecordService) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if c, ok := s.persister.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("persister: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *RecordService) publish(ctx context.Context, msg *amqp.RecordChangeMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChange(ctx, msg); err != nil {
		// Delivery is best effort; the store already holds the change.
		s.logger.WarnContext(ctx, "Failed to publish record change",
			"action", msg.Action, log.FieldRecordID, msg.RecordID, log.FieldError, err)
	}
}
