package ledger

import (
	"context"

	"finboard/internal/core"
)

// Ports for persistence collaborators.
type (
	Loader interface {
		LoadRecords(ctx context.Context) ([]core.MonthlyRecord, error)
	}

	// Persister mirrors store mutations into durable storage.
	Persister interface {
		Loader
		UpsertRecord(ctx context.Context, r core.MonthlyRecord) error
		DeleteRecord(ctx context.Context, id string) error
	}
)
