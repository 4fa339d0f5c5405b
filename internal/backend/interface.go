package backend

import (
	"context"

	"finboard/internal/ledger"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// PingFunc reports backend health for readiness probes.
type PingFunc func(ctx context.Context) error

// BackendResult contains the persistence collaborator and its lifecycle hooks.
// Persister is nil for the memory backend.
type BackendResult struct {
	Persister ledger.Persister
	Ping      PingFunc
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// MongoDB specific
	MongoURI    string
	MongoDBName string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}
