package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mediaforge/internal/asset"
	"mediaforge/internal/logging"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS asset_records (
    identity         TEXT PRIMARY KEY,
    source_path      TEXT NOT NULL DEFAULT '',
    base_name        TEXT NOT NULL DEFAULT '',
    description_path TEXT NOT NULL DEFAULT '',
    completed_stages TEXT NOT NULL DEFAULT '[]',
    asset_type       TEXT NOT NULL DEFAULT 'unknown',
    outputs          TEXT NOT NULL DEFAULT '{}',
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);
`

// SQLiteStore persists asset records in a SQLite database. It exists for
// setups where several CI runners process assets concurrently: SQLite's
// locking plus the upsert-by-primary-key write path gives the same
// read-modify-write guarantee the JSON store gets from its file lock, without
// the whole-file rewrite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite initializes or connects to the record database.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "store"),
	}, nil
}

// Load returns every record ordered by identity.
func (s *SQLiteStore) Load(ctx context.Context) ([]*asset.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT identity, source_path, base_name, description_path,
               completed_stages, asset_type, outputs, created_at, updated_at
        FROM asset_records ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*asset.Record
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable record row", logging.Error(err))
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Get returns the record for an identity, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, identityToken string) (*asset.Record, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT identity, source_path, base_name, description_path,
               completed_stages, asset_type, outputs, created_at, updated_at
        FROM asset_records WHERE identity = ?`, identityToken)
	record, err := s.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// Upsert inserts or replaces the record with matching identity.
func (s *SQLiteStore) Upsert(ctx context.Context, record *asset.Record) error {
	return upsertRecord(ctx, s.db, record)
}

// Mutate applies fn to the stored record inside a write transaction, so the
// read and the write happen under the same database lock.
func (s *SQLiteStore) Mutate(ctx context.Context, identityToken string, fn func(*asset.Record) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mutation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
        SELECT identity, source_path, base_name, description_path,
               completed_stages, asset_type, outputs, created_at, updated_at
        FROM asset_records WHERE identity = ?`, identityToken)
	record, err := s.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := fn(record); err != nil {
		return err
	}
	if err := upsertRecord(ctx, tx, record); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRecord(ctx context.Context, db execer, record *asset.Record) error {
	if record == nil || record.Identity == "" {
		return ErrMissingIdentity
	}

	stages, err := json.Marshal(record.CompletedStages)
	if err != nil {
		return fmt.Errorf("marshal completed stages: %w", err)
	}
	outputs, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	_, err = db.ExecContext(ctx, `
        INSERT INTO asset_records (
            identity, source_path, base_name, description_path,
            completed_stages, asset_type, outputs, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(identity) DO UPDATE SET
            source_path = excluded.source_path,
            base_name = excluded.base_name,
            description_path = excluded.description_path,
            completed_stages = excluded.completed_stages,
            asset_type = excluded.asset_type,
            outputs = excluded.outputs,
            updated_at = excluded.updated_at`,
		record.Identity,
		record.SourcePath,
		record.BaseName,
		record.DescriptionPath,
		string(stages),
		string(record.Type),
		string(outputs),
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanRecord(row rowScanner) (*asset.Record, error) {
	var (
		record    asset.Record
		stages    string
		mediaType string
		outputs   string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&record.Identity,
		&record.SourcePath,
		&record.BaseName,
		&record.DescriptionPath,
		&stages,
		&mediaType,
		&outputs,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(stages), &record.CompletedStages); err != nil {
		return nil, fmt.Errorf("parse completed stages for %s: %w", record.Identity, err)
	}
	if outputs != "" && outputs != "{}" {
		if err := json.Unmarshal([]byte(outputs), &record.Outputs); err != nil {
			return nil, fmt.Errorf("parse outputs for %s: %w", record.Identity, err)
		}
	}
	record.Type = asset.MediaType(mediaType)
	if record.Type == "" {
		record.Type = asset.TypeUnknown
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		record.UpdatedAt = ts
	}
	return &record, nil
}
