package engine

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// Bucket wraps a bbolt.Bucket.
type Bucket struct {
	bolt *bbolt.Bucket
	tx   *Tx
}

// ErrKeyExists is returned by Put when NoOverwrite is set and the key is
// already present.
var ErrKeyExists = fmt.Errorf("engine: key exists")

// ErrNotFound is returned when a key or bucket is absent.
var ErrNotFound = fmt.Errorf("engine: not found")

// Put stores key -> value. If noOverwrite is true and the key already
// exists, returns ErrKeyExists without modifying the bucket.
func (b *Bucket) Put(op Op, key, value []byte, noOverwrite bool) error {
	if err := b.checkFault(op); err != nil {
		return err
	}

	if err := b.tx.chargeOp(); err != nil {
		return err
	}

	if noOverwrite && b.bolt.Get(key) != nil {
		return ErrKeyExists
	}

	err := b.bolt.Put(key, value)
	if err != nil {
		return fmt.Errorf("engine: put: %w", err)
	}

	return nil
}

// Get returns the zero-copy value for key, or nil if absent. The slice
// is only valid for the lifetime of the enclosing transaction.
func (b *Bucket) Get(key []byte) []byte {
	return b.bolt.Get(key)
}

// Delete removes key. Benign (returns nil) if the key is absent.
func (b *Bucket) Delete(op Op, key []byte) error {
	if err := b.checkFault(op); err != nil {
		return err
	}

	if err := b.tx.chargeOp(); err != nil {
		return err
	}

	err := b.bolt.Delete(key)
	if err != nil {
		return fmt.Errorf("engine: delete: %w", err)
	}

	return nil
}

// CreateBucketIfNotExists creates or opens a nested bucket.
func (b *Bucket) CreateBucketIfNotExists(name []byte) (*Bucket, error) {
	nb, err := b.bolt.CreateBucketIfNotExists(name)
	if err != nil {
		return nil, fmt.Errorf("engine: create nested bucket: %w", err)
	}

	return &Bucket{bolt: nb, tx: b.tx}, nil
}

// Bucket opens an existing nested bucket, or nil if absent.
func (b *Bucket) Bucket(name []byte) *Bucket {
	nb := b.bolt.Bucket(name)
	if nb == nil {
		return nil
	}

	return &Bucket{bolt: nb, tx: b.tx}
}

// DeleteBucket removes a nested bucket. Benign if absent.
func (b *Bucket) DeleteBucket(name []byte) error {
	err := b.bolt.DeleteBucket(name)
	if err != nil {
		if err == bbolt.ErrBucketNotFound { //nolint:errorlint // bbolt sentinel
			return nil
		}

		return fmt.Errorf("engine: delete nested bucket: %w", err)
	}

	return nil
}

// Cursor returns a navigable cursor over b's direct entries. Nested
// buckets are not skipped: they come back as their key with a nil value.
func (b *Bucket) Cursor() *Cursor {
	return &Cursor{bolt: b.bolt.Cursor(), bucket: b}
}
