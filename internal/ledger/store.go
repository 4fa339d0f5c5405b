// Package ledger holds the monthly record collection and the derived report
// view. Every mutation invalidates the cached reports; the next read derives
// them again from the current records.
package ledger

import (
	"sync"

	"github.com/google/uuid"

	"finboard/internal/core"
)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default uuid generator used for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Stats is a point-in-time view of store counters.
type Stats struct {
	Version     uint64
	Records     int
	Derivations uint64
}

// Snapshot is a consistent view of the reports at one store version.
type Snapshot struct {
	Version uint64
	Reports []core.MonthlyReport
}

// Latest returns the report with the greatest month key.
func (sn Snapshot) Latest() (core.MonthlyReport, bool) {
	if len(sn.Reports) == 0 {
		return core.MonthlyReport{}, false
	}
	return sn.Reports[len(sn.Reports)-1], true
}

// Store keeps records in insertion order. Month keys are unique.
type Store struct {
	mu      sync.Mutex
	records []core.MonthlyRecord
	newID   func() string

	version     uint64
	reports     []core.MonthlyReport
	dirty       bool
	derivations uint64
}

// New returns a store populated with a copy of seed, normalised the same way
// as Replace.
func New(seed []core.MonthlyRecord, opts ...Option) *Store {
	s := &Store{newID: uuid.NewString, dirty: true}
	for _, opt := range opts {
		opt(s)
	}
	s.records = s.normalize(seed)
	return s
}

// SaveRecord inserts r, or replaces the record with the same month while
// keeping that record's id and position. A new record gets a fresh id; any id
// on r is ignored. The stored record is returned.
func (s *Store) SaveRecord(r core.MonthlyRecord) core.MonthlyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := r.Clone()
	if i := s.indexByMonth(r.Month); i >= 0 {
		stored.ID = s.records[i].ID
		s.records[i] = stored
	} else {
		stored.ID = s.uniqueID()
		s.records = append(s.records, stored)
	}
	s.invalidate()
	return stored.Clone()
}

// DeleteRecord removes the record with the given id. It reports whether a
// record was removed; deleting an unknown id leaves the store unchanged.
func (s *Store) DeleteRecord(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.invalidate()
			return true
		}
	}
	return false
}

// GetRecordByMonth returns the record for month, if any.
func (s *Store) GetRecordByMonth(month string) (core.MonthlyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexByMonth(month); i >= 0 {
		return s.records[i].Clone(), true
	}
	return core.MonthlyRecord{}, false
}

// Records returns a copy of all records in insertion order.
func (s *Store) Records() []core.MonthlyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.records)
}

// Reports returns one report per record, ordered by month.
func (s *Store) Reports() []core.MonthlyReport {
	return s.Snapshot().Reports
}

// Latest returns the report with the greatest month key.
func (s *Store) Latest() (core.MonthlyReport, bool) {
	return s.Snapshot().Latest()
}

// Snapshot returns the reports together with the version they were derived
// at, taken under a single lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh()
	out := make([]core.MonthlyReport, len(s.reports))
	for i, rep := range s.reports {
		rep.MonthlyRecord = rep.MonthlyRecord.Clone()
		out[i] = rep
	}
	return Snapshot{Version: s.version, Reports: out}
}

// Replace swaps the whole collection, typically with records loaded from
// persistent storage at startup. Later duplicates of a month are dropped.
func (s *Store) Replace(records []core.MonthlyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.normalize(records)
	s.invalidate()
}

// normalize copies records keeping the first record of each month and
// giving id-less records a fresh id.
func (s *Store) normalize(records []core.MonthlyRecord) []core.MonthlyRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]core.MonthlyRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Month]; ok {
			continue
		}
		seen[r.Month] = struct{}{}
		r = r.Clone()
		if r.ID == "" {
			r.ID = freshID(s.newID, out)
		}
		out = append(out, r)
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Version: s.version, Records: len(s.records), Derivations: s.derivations}
}

func (s *Store) invalidate() {
	s.version++
	s.dirty = true
}

func (s *Store) refresh() {
	if !s.dirty {
		return
	}
	s.reports = core.DeriveAll(s.records)
	s.dirty = false
	s.derivations++
}

func (s *Store) indexByMonth(month string) int {
	for i := range s.records {
		if s.records[i].Month == month {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueID() string {
	return freshID(s.newID, s.records)
}

// freshID draws ids until one is unused in records; injected generators may repeat.
func freshID(gen func() string, records []core.MonthlyRecord) string {
	for {
		id := gen()
		taken := false
		for i := range records {
			if records[i].ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

func cloneAll(in []core.MonthlyRecord) []core.MonthlyRecord {
	out := make([]core.MonthlyRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
