package engine

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// Tx wraps a bbolt.Tx, tracking the per-transaction op budget.
type Tx struct {
	bolt    *bbolt.Tx
	db      *DB
	writer  bool
	opCount int
}

// Begin starts a bbolt transaction.
func (db *DB) Begin(writable bool) (*Tx, error) {
	bolt, err := db.bolt.Begin(writable)
	if err != nil {
		return nil, fmt.Errorf("engine: begin: %w", err)
	}

	return &Tx{bolt: bolt, db: db, writer: writable}, nil
}

// Writable reports whether tx is a write transaction.
func (tx *Tx) Writable() bool {
	return tx.writer
}

// chargeOp counts one mutating operation against the soft MaxTxnOps
// budget (see Options.MaxTxnOps and spec.md's TXN_FULL taxonomy member).
func (tx *Tx) chargeOp() error {
	if tx.db.maxTxnOps <= 0 {
		return nil
	}

	tx.opCount++
	if tx.opCount > tx.db.maxTxnOps {
		return ErrTxnFull
	}

	return nil
}

// Commit commits the transaction, then checks the soft MapSize budget.
func (tx *Tx) Commit() error {
	err := tx.bolt.Commit()
	if err != nil {
		return fmt.Errorf("engine: commit: %w", err)
	}

	if tx.writer {
		if sizeErr := tx.db.checkMapSize(); sizeErr != nil {
			return sizeErr
		}
	}

	return nil
}

// Rollback aborts the transaction. Infallible from the caller's point of
// view: errors are swallowed the way spec.md requires abort to be.
func (tx *Tx) Rollback() {
	_ = tx.bolt.Rollback()
}

// CreateBucketIfNotExists creates (or opens) a top-level bucket.
func (tx *Tx) CreateBucketIfNotExists(name []byte) (*Bucket, error) {
	b, err := tx.bolt.CreateBucketIfNotExists(name)
	if err != nil {
		return nil, fmt.Errorf("engine: create bucket: %w", err)
	}

	return &Bucket{bolt: b, tx: tx}, nil
}

// Bucket opens an existing top-level bucket, or returns nil if absent.
func (tx *Tx) Bucket(name []byte) *Bucket {
	b := tx.bolt.Bucket(name)
	if b == nil {
		return nil
	}

	return &Bucket{bolt: b, tx: tx}
}

// DeleteBucket removes a top-level bucket. Benign if the bucket does not
// exist (returns nil, matching the idempotent-delete contract the
// collection layer relies on).
func (tx *Tx) DeleteBucket(name []byte) error {
	err := tx.bolt.DeleteBucket(name)
	if err != nil {
		if err == bbolt.ErrBucketNotFound { //nolint:errorlint // sentinel from bbolt, never wrapped
			return nil
		}

		return fmt.Errorf("engine: delete bucket: %w", err)
	}

	return nil
}

// ForEachBucketName iterates top-level bucket names whose bytes begin
// with prefix, invoking fn for each. Stops early if fn returns false.
func (tx *Tx) ForEachBucketName(prefix []byte, fn func(name []byte) bool) error {
	c := tx.bolt.Cursor()

	for k, v := c.Seek(prefix); k != nil; k, v = c.Next() {
		if v != nil {
			// Not a bucket (top-level cursors yield nil value for buckets).
			continue
		}

		if !hasPrefix(k, prefix) {
			break
		}

		if !fn(k) {
			break
		}
	}

	return nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}

	if len(b) < len(prefix) {
		return false
	}

	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}

	return true
}
