package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheStagesUntilWrite(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("a"), []byte("1")))

	cache := NewCache(db)
	require.NoError(t, cache.Put([]byte("b"), []byte("2")))
	require.NoError(t, cache.Delete([]byte("a")))

	_, err := cache.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)
	got, err := cache.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)

	// parent untouched before Write
	got, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cache.Write())
	_, err = db.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)
	got, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)

	require.Error(t, cache.Write())
}

func TestCacheDiscardLeavesParentUntouched(t *testing.T) {
	db := NewMemDB()
	cache := NewCache(db)
	require.NoError(t, cache.Put([]byte("k"), []byte("v")))
	require.True(t, cache.Dirty())
	cache.Discard()

	require.Equal(t, 0, db.Len())
	_, err := cache.Get([]byte("k"))
	require.Error(t, err)
}

func TestNestedCaches(t *testing.T) {
	db := NewMemDB()
	outer := NewCache(db)
	inner := NewCache(outer)

	require.NoError(t, inner.Put([]byte("k"), []byte("v")))
	require.NoError(t, inner.Write())

	got, err := outer.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
	require.Equal(t, 0, db.Len())

	outer.Discard()
	require.Equal(t, 0, db.Len())
}

func TestLevelDBBatchWrite(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("old"), []byte("x")))
	cache := NewCache(db)
	require.NoError(t, cache.Put([]byte("new"), []byte("y")))
	require.NoError(t, cache.Delete([]byte("old")))
	require.NoError(t, cache.Write())

	_, err = db.Get([]byte("old"))
	require.ErrorIs(t, err, ErrNotFound)
	got, err := db.Get([]byte("new"))
	require.NoError(t, err)
	require.Equal(t, []byte("y"), got)
}

func TestBoltDBBatchWrite(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "market.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("old"), []byte("x")))
	cache := NewCache(db)
	require.NoError(t, cache.Put([]byte("new"), []byte("y")))
	require.NoError(t, cache.Delete([]byte("old")))
	require.NoError(t, cache.Write())

	_, err = db.Get([]byte("old"))
	require.ErrorIs(t, err, ErrNotFound)
	got, err := db.Get([]byte("new"))
	require.NoError(t, err)
	require.Equal(t, []byte("y"), got)
}
