package safe

import (
	"bytes"
	"fmt"
	"testing"

	"pubgate/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSafe(t *testing.T) *Safe {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, Options{CacheSize: 4})
	require.NoError(t, err)
	return s
}

func bigSnapshot() []byte {
	var buf bytes.Buffer
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&buf, "?? decks/Talk-%03d-v1.pptx\x00", i)
	}
	return buf.Bytes()
}

func TestSafe(t *testing.T) {
	s := setupTestSafe(t)

	t.Run("StoreAndGet", func(t *testing.T) {
		raw := []byte(" M frameworks/Model.md\x00")
		hash, err := s.Store(raw)
		require.NoError(t, err)
		assert.Len(t, hash, 64)

		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, raw, got)

		meta, err := s.Meta(hash)
		require.NoError(t, err)
		assert.False(t, meta.Compressed)
		assert.Equal(t, uint32(1), meta.RefCount)
	})

	t.Run("Compressed", func(t *testing.T) {
		raw := bigSnapshot()
		hash, err := s.Store(raw)
		require.NoError(t, err)

		meta, err := s.Meta(hash)
		require.NoError(t, err)
		assert.True(t, meta.Compressed)
		assert.Less(t, meta.StoredSize, meta.Size)

		// Bypass the cache to exercise decompression.
		s.cache.Purge()
		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	})

	t.Run("Empty", func(t *testing.T) {
		hash, err := s.Store(nil)
		require.NoError(t, err)

		s.cache.Purge()
		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("RefCount", func(t *testing.T) {
		raw := []byte("?? lexicon/term.md\x00")
		hash, err := s.Store(raw)
		require.NoError(t, err)
		_, err = s.Store(raw)
		require.NoError(t, err)

		meta, err := s.Meta(hash)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), meta.RefCount)

		require.NoError(t, s.Release(hash))
		_, err = s.Get(hash)
		require.NoError(t, err)

		require.NoError(t, s.Release(hash))
		_, err = s.Get(hash)
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("InvalidHash", func(t *testing.T) {
		_, err := s.Get("nope")
		assert.ErrorIs(t, err, ErrInvalidHash)
	})
}
