// internal/ledger/store.go
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pubgate/internal/safe"
	"pubgate/internal/storage"
	"pubgate/shared/types"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Store is the history of gate runs. Run IDs are UUIDv7 so key order is
// chronological.
type Store struct {
	db    *badger.DB
	store *storage.BadgerStore
	safe  *safe.Safe
}

// Open opens the ledger at dir. An empty dir opens an in-memory ledger.
func Open(dir string, cacheSize int) (*Store, error) {
	db, err := storage.Open(dir)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(db, cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewStore(db *badger.DB, cacheSize int) (*Store, error) {
	snapshots, err := safe.New(db, safe.Options{CacheSize: cacheSize})
	if err != nil {
		return nil, fmt.Errorf("initializing snapshot safe: %w", err)
	}
	return &Store{
		db:    db,
		store: storage.NewBadgerStore(db, "run"),
		safe:  snapshots,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func validate(r *shared.RunRecord) error {
	if r.Command == "" {
		return fmt.Errorf("command is required")
	}
	if r.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	return nil
}

// Record appends a run, assigning its ID and start time when unset.
func (s *Store) Record(r *shared.RunRecord) error {
	if err := validate(r); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating run id: %w", err)
		}
		r.ID = id.String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return s.store.Create(r)
}

// SaveSnapshot stores raw status bytes and returns their hash.
func (s *Store) SaveSnapshot(raw []byte) (string, error) {
	return s.safe.Store(raw)
}

// ReleaseSnapshot drops one reference to a stored snapshot.
func (s *Store) ReleaseSnapshot(hash string) error {
	return s.safe.Release(hash)
}

// Snapshot returns the raw status bytes captured for a run.
func (s *Store) Snapshot(r *shared.RunRecord) ([]byte, error) {
	if r.SnapshotHash == "" {
		return nil, fmt.Errorf("run %s has no stored snapshot", r.ID)
	}
	return s.safe.Get(r.SnapshotHash)
}

// Get returns the run with the given ID or unique ID prefix.
func (s *Store) Get(id string) (*shared.RunRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}
	var r shared.RunRecord
	err := s.store.Get(id, &r)
	if err == nil {
		return &r, nil
	}

	var matches []*shared.RunRecord
	err = s.store.Each(false, func(val []byte) (bool, error) {
		var cand shared.RunRecord
		if err := json.Unmarshal(val, &cand); err != nil {
			return false, err
		}
		if strings.HasPrefix(cand.ID, id) {
			matches = append(matches, &cand)
		}
		return len(matches) < 2, nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("getting run: %w: %s", storage.ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]*shared.RunRecord, error) {
	var runs []*shared.RunRecord
	err := s.store.Each(true, func(val []byte) (bool, error) {
		var r shared.RunRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return false, err
		}
		runs = append(runs, &r)
		return limit <= 0 || len(runs) < limit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// PruneStats reports what Prune removed.
type PruneStats struct {
	Runs      int   `json:"runs"`
	Snapshots int   `json:"snapshots"`
	Bytes     int64 `json:"bytes"`
}

// Prune deletes all but the newest keep runs and releases their
// snapshots. A snapshot shared with a kept run stays stored.
func (s *Store) Prune(keep int) (PruneStats, error) {
	var stats PruneStats
	if keep < 0 {
		return stats, fmt.Errorf("keep must not be negative")
	}

	runs, err := s.List(0)
	if err != nil {
		return stats, err
	}
	if len(runs) <= keep {
		return stats, nil
	}

	for _, r := range runs[keep:] {
		if r.SnapshotHash != "" {
			meta, err := s.safe.Meta(r.SnapshotHash)
			switch {
			case err == nil:
				if meta.RefCount <= 1 {
					stats.Snapshots++
					stats.Bytes += meta.StoredSize
				}
				if err := s.safe.Release(r.SnapshotHash); err != nil {
					return stats, fmt.Errorf("releasing snapshot of run %s: %w", r.ID, err)
				}
			case !errors.Is(err, safe.ErrSnapshotNotFound):
				return stats, fmt.Errorf("reading snapshot of run %s: %w", r.ID, err)
			}
		}
		if err := s.store.Delete(r.ID); err != nil {
			return stats, fmt.Errorf("deleting run %s: %w", r.ID, err)
		}
		stats.Runs++
	}
	return stats, nil
}
