// Package storage persists monthly records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements ledger.Persister.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer avoids SQLITE_BUSY between concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertRecord writes the record row and replaces its expense rows in one
// transaction. The month column is unique, so a record that moved ids for the
// same month replaces the old row.
func (r *SQLiteRepository) UpsertRecord(ctx context.Context, rec core.MonthlyRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM monthly_records WHERE month = ? AND id <> ?`, rec.Month, rec.ID); err != nil {
		return fmt.Errorf("clear stale month row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO monthly_records (id, month, revenue, labor_cost, headcount)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			month = excluded.month,
			revenue = excluded.revenue,
			labor_cost = excluded.labor_cost,
			headcount = excluded.headcount,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ID, rec.Month, rec.Revenue.String(), rec.LaborCost.String(), rec.Headcount)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM record_expenses WHERE record_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	for i, e := range rec.Expenses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_expenses (record_id, position, category, amount) VALUES (?, ?, ?, ?)`,
			rec.ID, i, string(e.Category), e.Amount.String()); err != nil {
			return fmt.Errorf("insert expense %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		log.FieldRecordID, rec.ID,
		log.FieldMonth, rec.Month)
	return nil
}

// DeleteRecord removes the record and its expenses. Unknown ids are not an
// error.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM record_expenses WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return tx.Commit()
}

// LoadRecords returns all records ordered by month with expenses in their
// saved order.
func (r *SQLiteRepository) LoadRecords(ctx context.Context) ([]core.MonthlyRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, month, revenue, labor_cost, headcount FROM monthly_records ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []core.MonthlyRecord
	index := make(map[string]int)
	for rows.Next() {
		var rec core.MonthlyRecord
		if err := rows.Scan(&rec.ID, &rec.Month, &rec.Revenue, &rec.LaborCost, &rec.Headcount); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	erows, err := r.db.QueryContext(ctx,
		`SELECT record_id, category, amount FROM record_expenses ORDER BY record_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var (
			recordID string
			category string
			amount   decimal.Decimal
		)
		if err := erows.Scan(&recordID, &category, &amount); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		i, ok := index[recordID]
		if !ok {
			continue
		}
		records[i].Expenses = append(records[i].Expenses, core.Expense{Category: core.Category(category), Amount: amount})
	}
	if err := erows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return records, nil
}
