package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelDBBatchPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)

	batch := NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	require.Equal(t, 2, batch.Len())
	require.NoError(t, db1.Write(batch))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
	got, err = db2.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)

	_, err = db2.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDBBatchAndCopies(t *testing.T) {
	db := NewMemDB()
	value := []byte("v1")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'x'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	batch := NewBatch()
	batch.Put([]byte("k2"), []byte("v2"))
	batch.Delete([]byte("k"))
	require.NoError(t, db.Write(batch))

	_, err = db.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
	got, err = db.Get([]byte("k2"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)

	require.NoError(t, db.Write(nil))
}

func TestMemLevelDB(t *testing.T) {
	db, err := NewMemLevelDB()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}
