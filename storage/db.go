package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store. Writes grouped in a
// Batch are applied all-or-nothing.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Write(batch *Batch) error
	Close()
}

// Batch collects writes that must land together.
type Batch struct {
	inner leveldb.Batch
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Put records a key/value write.
func (b *Batch) Put(key, value []byte) { b.inner.Put(key, value) }

// Delete records a key removal.
func (b *Batch) Delete(key []byte) { b.inner.Delete(key) }

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return b.inner.Len() }

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Write applies the batch under a single lock so readers never observe a
// partially applied batch.
func (db *MemDB) Write(batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return batch.inner.Replay(memReplay{data: db.data})
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {}

type memReplay struct {
	data map[string][]byte
}

func (r memReplay) Put(key, value []byte) {
	r.data[string(key)] = append([]byte(nil), value...)
}

func (r memReplay) Delete(key []byte) {
	delete(r.data, string(key))
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db   *leveldb.DB
	sync bool
}

// NewLevelDB creates or opens a LevelDB database at the specified path. Batch
// writes are fsynced before returning.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db, sync: true}, nil
}

// NewMemLevelDB opens a LevelDB instance over goleveldb's in-memory storage.
// It shares the persistent code path and is used by tests.
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Write commits the batch atomically.
func (ldb *LevelDB) Write(batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	return ldb.db.Write(&batch.inner, &opt.WriteOptions{Sync: ldb.sync})
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	_ = ldb.db.Close()
}
