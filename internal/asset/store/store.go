package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mediaforge/internal/asset"
	"mediaforge/internal/config"
)

// ErrNotFound is returned by Get when no record exists for an identity.
var ErrNotFound = errors.New("asset record not found")

// ErrMissingIdentity is returned by Upsert for records without a primary key.
var ErrMissingIdentity = errors.New("record identity is required")

// Store persists asset records. Implementations must make Upsert an
// atomically-scoped read-modify-write: concurrent runs touching the same
// store may interleave, but a completed Upsert is never lost to a concurrent
// writer and readers never observe a half-written store.
type Store interface {
	// Load returns every record, ordered by identity. A missing or
	// unreadable store yields an empty collection, never an error that
	// would block the pipeline.
	Load(ctx context.Context) ([]*asset.Record, error)
	// Get returns the record for an identity, or ErrNotFound.
	Get(ctx context.Context, identity string) (*asset.Record, error)
	// Upsert replaces the record with matching identity or inserts it.
	Upsert(ctx context.Context, record *asset.Record) error
	// Mutate applies fn to the stored record for an identity as one
	// read-modify-write: fn sees the latest persisted state and its changes
	// are saved before any concurrent writer can interleave. Returns
	// ErrNotFound when no record exists; an error from fn aborts the write.
	Mutate(ctx context.Context, identity string, fn func(*asset.Record) error) error
	Close() error
}

// Open constructs the store backend selected by configuration.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case "json":
		return NewJSON(cfg.Paths.IndexPath, logger), nil
	case "sqlite":
		return OpenSQLite(cfg.Store.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
