// Package engine adapts go.etcd.io/bbolt to the narrow surface pkg/idxkv
// needs: named sub-trees ("buckets"), read/write transactions, cursors,
// and byte-comparable key ordering. It is the one place in this module
// that imports bbolt directly — pkg/idxkv only sees the types declared
// here plus the sentinel errors (ErrNotFound, ErrMapFull, ...) declared
// in this package.
//
// bbolt has no native sorted-duplicate sub-tree (unlike LMDB/WiredTiger).
// Callers needing dupsort semantics nest a bucket per outer key and use
// the nested bucket's keys as the "duplicate" values; that emulation
// lives in pkg/idxkv (index maintenance), not here — this package only
// exposes plain buckets.
package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

// DB wraps a bbolt.DB, adding soft MapSize/MaxTxnOps budgets that bbolt
// itself does not enforce (bbolt grows its mmap automatically instead of
// failing with MDB_MAP_FULL the way LMDB does).
type DB struct {
	bolt       *bbolt.DB
	path       string
	mapSize    int64
	maxTxnOps  int
	faultpoint *Faultpoint
}

// Options configures Open.
type Options struct {
	// MapSize is a soft ceiling on the data file size, checked after each
	// write commit. Zero means no soft ceiling (still bounded by disk).
	MapSize int64

	// MaxTxnOps is a soft ceiling on the number of Put/Delete calls within
	// a single write transaction, checked before each mutation. Zero means
	// unbounded.
	MaxTxnOps int

	// Timeout is the bbolt file-lock acquisition timeout.
	Timeout time.Duration

	// ReadOnly opens the database without acquiring the write lock.
	ReadOnly bool

	// NoSync disables fsync on commit; matches bbolt.Options.NoSync.
	NoSync bool

	// Faultpoint, when non-nil, lets tests inject errors at specific
	// mutation points. See Faultpoint for the trigger model.
	Faultpoint *Faultpoint
}

// Open opens (creating if absent) the bbolt data file at path.
func Open(path string, mode os.FileMode, opts Options) (*DB, error) {
	boltOpts := &bbolt.Options{
		Timeout:  opts.Timeout,
		ReadOnly: opts.ReadOnly,
		NoSync:   opts.NoSync,
	}

	bolt, err := bbolt.Open(path, mode, boltOpts)
	if err != nil {
		return nil, fmt.Errorf("engine: open: %w", err)
	}

	return &DB{
		bolt:       bolt,
		path:       path,
		mapSize:    opts.MapSize,
		maxTxnOps:  opts.MaxTxnOps,
		faultpoint: opts.Faultpoint,
	}, nil
}

// Close closes the underlying data file.
func (db *DB) Close() error {
	if db == nil || db.bolt == nil {
		return nil
	}

	return db.bolt.Close()
}

// Path returns the data file path.
func (db *DB) Path() string {
	return db.path
}

// Sync forces the bbolt file descriptor to be flushed to stable storage.
func (db *DB) Sync() error {
	return db.bolt.Sync()
}

// SetMapSize adjusts the soft size budget enforced after each commit.
func (db *DB) SetMapSize(n int64) {
	db.mapSize = n
}

// Stats mirrors bbolt.DB.Stats, translated to avoid leaking bbolt types.
type Stats struct {
	FreePageCount   int
	PendingPageCage int
	FreeAlloc       int
	TxCount         int
	OpenTxCount     int
	DataSize        int64
}

// Stats returns current engine statistics.
func (db *DB) Stats() (Stats, error) {
	info, err := os.Stat(db.path)
	if err != nil {
		return Stats{}, fmt.Errorf("engine: stat: %w", err)
	}

	s := db.bolt.Stats()

	return Stats{
		FreePageCount:   s.FreePageN,
		PendingPageCage: s.PendingPageN,
		FreeAlloc:       s.FreeAlloc,
		TxCount:         s.TxN,
		OpenTxCount:     s.OpenTxN,
		DataSize:        info.Size(),
	}, nil
}

// ErrMapFull is returned when a committed write transaction would push
// (or has pushed) the data file past the configured soft MapSize budget.
var ErrMapFull = errors.New("engine: map full")

// ErrTxnFull is returned when a write transaction exceeds MaxTxnOps.
var ErrTxnFull = errors.New("engine: txn full")

// checkMapSize returns ErrMapFull if the data file exceeds the soft budget.
func (db *DB) checkMapSize() error {
	if db.mapSize <= 0 {
		return nil
	}

	info, err := os.Stat(db.path)
	if err != nil {
		return fmt.Errorf("engine: stat: %w", err)
	}

	if info.Size() > db.mapSize {
		return ErrMapFull
	}

	return nil
}
