package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"mediaforge/internal/asset"
	"mediaforge/internal/fileutil"
	"mediaforge/internal/logging"
)

// JSONStore keeps the full record collection in one JSON file: a flat array of
// records sorted by identity so repository diffs stay readable. Every mutation
// holds an exclusive advisory lock on a sibling .lock file while it re-reads
// the collection, applies the change, and writes the file atomically. That
// makes concurrent CI runs serialize on the store instead of silently
// discarding each other's updates via last-write-wins.
type JSONStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewJSON creates a JSON file store rooted at path. The file is created lazily
// on first Upsert.
func NewJSON(path string, logger *slog.Logger) *JSONStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JSONStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "store"),
	}
}

// Load returns every record. Missing and malformed files both yield an empty
// collection; a malformed file is preserved under a .corrupt suffix for
// inspection, since blocking every future run on unreadable state would be
// worse than redoing work.
func (s *JSONStore) Load(ctx context.Context) ([]*asset.Record, error) {
	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire store read lock: %w", err)
	}
	if !locked {
		return nil, errors.New("store read lock unavailable")
	}
	defer func() { _ = s.lock.Unlock() }()

	return s.loadLocked(), nil
}

// Get returns the record for an identity, or ErrNotFound.
func (s *JSONStore) Get(ctx context.Context, identityToken string) (*asset.Record, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.Identity == identityToken {
			return record, nil
		}
	}
	return nil, ErrNotFound
}

// Upsert inserts or replaces the record with matching identity under an
// exclusive lock, re-reading the file first so updates from concurrent runs
// survive.
func (s *JSONStore) Upsert(ctx context.Context, record *asset.Record) error {
	if record == nil || strings.TrimSpace(record.Identity) == "" {
		return ErrMissingIdentity
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return errors.New("store lock unavailable")
	}
	defer func() { _ = s.lock.Unlock() }()

	records := s.loadLocked()
	replaced := false
	for i, existing := range records {
		if existing.Identity == record.Identity {
			records[i] = record.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record.Clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Identity < records[j].Identity })

	return s.saveLocked(records)
}

// Mutate re-reads the collection under the exclusive lock, applies fn to the
// matching record, and writes the result. fn operates on the persisted state,
// not whatever stale copy the caller holds.
func (s *JSONStore) Mutate(ctx context.Context, identityToken string, fn func(*asset.Record) error) error {
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return errors.New("store lock unavailable")
	}
	defer func() { _ = s.lock.Unlock() }()

	records := s.loadLocked()
	for _, record := range records {
		if record.Identity == identityToken {
			if err := fn(record); err != nil {
				return err
			}
			return s.saveLocked(records)
		}
	}
	return ErrNotFound
}

// Close releases nothing; the lock is only held during operations.
func (s *JSONStore) Close() error {
	return nil
}

// Path returns the index file location.
func (s *JSONStore) Path() string {
	return s.path
}

const lockRetryDelay = 100 * time.Millisecond

func (s *JSONStore) loadLocked() []*asset.Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("index unreadable, starting empty",
				logging.String("path", s.path),
				logging.Error(err))
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var records []*asset.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.quarantine(err)
		return nil
	}

	kept := records[:0]
	for _, record := range records {
		if record != nil && strings.TrimSpace(record.Identity) != "" {
			kept = append(kept, record)
		}
	}
	return kept
}

func (s *JSONStore) saveLocked(records []*asset.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// quarantine moves a malformed index aside so the damaged state stays
// available for inspection while the pipeline proceeds from empty.
func (s *JSONStore) quarantine(cause error) {
	quarantined := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UTC().Unix())
	renameErr := os.Rename(s.path, quarantined)
	s.logger.Warn("index malformed, treating state as empty",
		logging.String("path", s.path),
		logging.String("quarantined_as", quarantined),
		logging.Error(cause))
	if renameErr != nil {
		s.logger.Warn("failed to quarantine malformed index", logging.Error(renameErr))
	}
}
