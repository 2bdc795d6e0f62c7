// internal/safe/safe.go
package safe

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pubgate/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidHash      = errors.New("invalid snapshot hash")
)

// SnapshotMeta stores metadata about a stored status snapshot.
type SnapshotMeta struct {
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	StoredSize int64     `json:"stored_size"`
	RefCount   uint32    `json:"ref_count"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Safe keeps raw status snapshots content-addressed by sha256 so a past
// run can be re-evaluated byte for byte.
type Safe struct {
	db    *badger.DB
	cache *lru.Cache[string, []byte]
	codec *codec
}

// Options configures Safe behavior
type Options struct {
	CacheSize   int // Number of snapshots to cache
	Compression CompressionOptions
}

func New(db *badger.DB, opts Options) (*Safe, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.Compression.MinSize == 0 && opts.Compression.Level == 0 {
		opts.Compression = DefaultCompressionOptions()
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	c, err := newCodec(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating codec: %w", err)
	}

	return &Safe{db: db, cache: cache, codec: c}, nil
}

// Store saves a snapshot and returns its hash. Storing the same bytes
// twice only bumps the reference count.
func (s *Safe) Store(snapshot []byte) (string, error) {
	if snapshot == nil {
		snapshot = []byte{}
	}
	hash := utils.HashContent(snapshot)

	meta, err := s.getMeta(hash)
	switch {
	case err == nil:
		meta.RefCount++
		if err := s.storeMeta(meta, nil); err != nil {
			return "", fmt.Errorf("incrementing ref count: %w", err)
		}
		return hash, nil
	case !errors.Is(err, ErrSnapshotNotFound):
		return "", fmt.Errorf("checking existence: %w", err)
	}

	data, compressed := s.codec.compress(snapshot)
	meta = SnapshotMeta{
		Hash:       hash,
		Size:       int64(len(snapshot)),
		StoredSize: int64(len(data)),
		RefCount:   1,
		Compressed: compressed,
		CreatedAt:  time.Now(),
	}
	if err := s.storeMeta(meta, data); err != nil {
		return "", fmt.Errorf("storing snapshot: %w", err)
	}

	s.cache.Add(hash, snapshot)
	return hash, nil
}

// Get retrieves a snapshot by hash and verifies its integrity.
func (s *Safe) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}
	if snapshot, ok := s.cache.Get(hash); ok {
		return snapshot, nil
	}

	meta, err := s.getMeta(hash)
	if err != nil {
		return nil, fmt.Errorf("getting metadata: %w", err)
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSnapshotNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	if meta.Compressed {
		if data, err = s.codec.decompress(data); err != nil {
			return nil, fmt.Errorf("decompressing snapshot: %w", err)
		}
	}

	if utils.HashContent(data) != hash {
		return nil, fmt.Errorf("snapshot hash mismatch")
	}

	s.cache.Add(hash, data)
	return data, nil
}

// Meta returns the stored metadata for hash.
func (s *Safe) Meta(hash string) (SnapshotMeta, error) {
	if !isValidHash(hash) {
		return SnapshotMeta{}, ErrInvalidHash
	}
	return s.getMeta(hash)
}

// Release drops one reference and removes the snapshot at zero.
func (s *Safe) Release(hash string) error {
	if !isValidHash(hash) {
		return ErrInvalidHash
	}
	meta, err := s.getMeta(hash)
	if err != nil {
		return fmt.Errorf("getting metadata: %w", err)
	}

	meta.RefCount--
	if meta.RefCount > 0 {
		return s.storeMeta(meta, nil)
	}

	s.cache.Remove(hash)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(metaKey(hash)); err != nil {
			return err
		}
		return txn.Delete(blobKey(hash))
	})
}

func metaKey(hash string) []byte { return []byte("snapshot-meta:" + hash) }
func blobKey(hash string) []byte { return []byte("snapshot-blob:" + hash) }

func isValidHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// storeMeta writes meta and, when data is non-nil, the blob in the
// same transaction.
func (s *Safe) storeMeta(meta SnapshotMeta, data []byte) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if data != nil {
			if err := txn.Set(blobKey(meta.Hash), data); err != nil {
				return err
			}
		}
		return txn.Set(metaKey(meta.Hash), encoded)
	})
}

func (s *Safe) getMeta(hash string) (SnapshotMeta, error) {
	var meta SnapshotMeta

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSnapshotNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})

	return meta, err
}
