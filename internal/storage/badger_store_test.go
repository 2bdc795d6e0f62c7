package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *testEntity) GetID() string { return e.ID }

func setupTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db, "test")
}

func TestBadgerStore(t *testing.T) {
	s := setupTestStore(t)

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, s.Create(&testEntity{ID: "b", Name: "second"}))
		require.NoError(t, s.Create(&testEntity{ID: "a", Name: "first"}))
		require.NoError(t, s.Create(&testEntity{ID: "c", Name: "third"}))

		assert.Error(t, s.Create(&testEntity{ID: "a"}), "duplicate")
		assert.Error(t, s.Create(&testEntity{}), "empty id")
	})

	t.Run("Get", func(t *testing.T) {
		var e testEntity
		require.NoError(t, s.Get("a", &e))
		assert.Equal(t, "first", e.Name)

		assert.ErrorIs(t, s.Get("missing", &e), ErrNotFound)
	})

	t.Run("EachForward", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, collect(t, s, false, 0))
	})

	t.Run("EachReverse", func(t *testing.T) {
		assert.Equal(t, []string{"c", "b", "a"}, collect(t, s, true, 0))
		assert.Equal(t, []string{"c", "b"}, collect(t, s, true, 2))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Create(&testEntity{ID: "d"}))
		require.NoError(t, s.Delete("d"))

		var e testEntity
		assert.ErrorIs(t, s.Get("d", &e), ErrNotFound)
		assert.ErrorIs(t, s.Delete("d"), ErrNotFound)
		assert.Equal(t, []string{"a", "b", "c"}, collect(t, s, false, 0))
	})

	t.Run("PrefixIsolation", func(t *testing.T) {
		other := NewBadgerStore(s.db, "tes")
		require.NoError(t, other.Create(&testEntity{ID: "z"}))
		assert.Equal(t, []string{"a", "b", "c"}, collect(t, s, false, 0))
		assert.Equal(t, []string{"z"}, collect(t, other, true, 0))
	})
}

func collect(t *testing.T, s *BadgerStore, reverse bool, limit int) []string {
	t.Helper()
	var ids []string
	err := s.Each(reverse, func(val []byte) (bool, error) {
		var e testEntity
		if err := json.Unmarshal(val, &e); err != nil {
			return false, err
		}
		ids = append(ids, e.ID)
		return limit <= 0 || len(ids) < limit, nil
	})
	require.NoError(t, err)
	return ids
}
