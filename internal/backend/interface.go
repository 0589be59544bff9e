// Package backend builds the transaction store selected by configuration.
package backend

import (
	"context"

	"cashflow/internal/query"
	"cashflow/internal/seed"
)

// Store is the full surface a backend offers: the read contract used for
// reports plus the write side used by seeding and imports.
type Store interface {
	query.Querier
	seed.Writer
	Ping(ctx context.Context) error
	DeleteTransaction(ctx context.Context, id string) error
	CompleteSchedule(ctx context.Context, id string) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the store and an optional cleanup function.
type Result struct {
	Store   Store
	Cleanup CleanupFunc
	Seeded  *seed.Stats
}

// Close runs the cleanup function if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// SeedFile, when set, is applied to the store after it opens.
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
