package testsupport

import (
	"context"
	"testing"

	"mediaforge/internal/asset"
	"mediaforge/internal/asset/store"
	"mediaforge/internal/config"
)

// NewStore opens the record store selected by the config and registers
// cleanup.
func NewStore(t testing.TB, cfg *config.Config) store.Store {
	t.Helper()

	s, err := store.Open(cfg, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// SeedRecord inserts a record and fails the test on error.
func SeedRecord(t testing.TB, s store.Store, record *asset.Record) {
	t.Helper()

	if err := s.Upsert(context.Background(), record); err != nil {
		t.Fatalf("seed record %s: %v", record.Identity, err)
	}
}
