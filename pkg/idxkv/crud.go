package idxkv

import (
	"errors"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// KV is a key/value pair, used by the batch primitives.
type KV struct {
	Key   []byte
	Value []byte
}

// Insert adds a new (key, value) pair, failing with ErrKeyExists if key
// is already present (spec.md §4.6 "insert"). Every secondary index is
// updated before the main-tree write (spec.md §4.5/§4.6:
// index-first-then-main is deliberate, so a unique-constraint violation
// is caught before the main-tree state changes at all, rather than
// leaving an un-indexed record behind it).
func Insert(tx *Tx, c *Collection, key, value []byte) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return err
	}

	if err := indexesInsert(tx, c, key, value); err != nil {
		return err
	}

	if err := main.Put(engine.OpMainPut, key, value, true); err != nil {
		return wrap(err, withCollection(c.name), withKey(key))
	}

	bumpCounter(tx, c, 1)

	return c.persistCounter(tx)
}

// Update replaces the value of an existing key, failing with ErrNotFound
// if key is absent (spec.md §9 design note: "update on an absent key
// returns not-found rather than silently inserting"). Every secondary
// index is re-derived from the new value before the main-tree write
// (spec.md §4.6 steps 3/4: index-first-then-main, same ordering as
// Insert), so a unique-constraint violation on the new value is caught
// before the main-tree record is overwritten.
func Update(tx *Tx, c *Collection, key, value []byte) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return err
	}

	old := main.Get(key)
	if old == nil {
		return wrap(ErrNotFound, withCollection(c.name), withKey(key))
	}

	oldValue := append([]byte(nil), old...)

	if err := indexesDelete(tx, c, key, oldValue); err != nil {
		return err
	}

	if err := indexesInsert(tx, c, key, value); err != nil {
		return err
	}

	if err := main.Put(engine.OpMainPut, key, value, false); err != nil {
		return wrap(err, withCollection(c.name), withKey(key))
	}

	return nil
}

// Upsert inserts key if absent, or replaces its value if present. If a
// MergeFunc was installed via SetMergeFunc/WithMergeFunc, it combines the
// existing value with the incoming one instead of overwriting outright
// (spec.md §4.6 "upsert").
func Upsert(tx *Tx, c *Collection, key, value []byte) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return err
	}

	old := main.Get(key)
	if old == nil {
		return Insert(tx, c, key, value)
	}

	oldValue := append([]byte(nil), old...)

	newValue := value
	if c.mergeFn != nil {
		merged, err := c.mergeFn(oldValue, value, c.mergeUserData)
		if err != nil {
			return wrap(err, withCollection(c.name), withKey(key))
		}

		newValue = merged
	}

	if err := indexesDelete(tx, c, key, oldValue); err != nil {
		return err
	}

	if err := indexesInsert(tx, c, key, newValue); err != nil {
		return err
	}

	if err := main.Put(engine.OpMainPut, key, newValue, false); err != nil {
		return wrap(err, withCollection(c.name), withKey(key))
	}

	return nil
}

// Delete removes key, failing with ErrNotFound if it is absent. Every
// secondary index is updated in the same write transaction.
func Delete(tx *Tx, c *Collection, key []byte) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return err
	}

	old := main.Get(key)
	if old == nil {
		return wrap(ErrNotFound, withCollection(c.name), withKey(key))
	}

	oldValue := append([]byte(nil), old...)

	if err := indexesDelete(tx, c, key, oldValue); err != nil {
		return err
	}

	if err := main.Delete(engine.OpMainDelete, key); err != nil {
		return wrap(err, withCollection(c.name), withKey(key))
	}

	bumpCounter(tx, c, -1)

	return c.persistCounter(tx)
}

// Get returns the zero-copy value for key, or ErrNotFound if absent. The
// returned slice is only valid for tx's lifetime (spec.md §5 "Borrowed"
// slices); callers that need the value past tx's end should use GetCopy.
func Get(tx *Tx, c *Collection, key []byte) ([]byte, error) {
	if err := requireLive(tx); err != nil {
		return nil, err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return nil, err
	}

	v := main.Get(key)
	if v == nil {
		return nil, wrap(ErrNotFound, withCollection(c.name), withKey(key))
	}

	return v, nil
}

// GetCopy is the auto-copy convenience variant of Get: it returns a
// caller-owned buffer that remains valid after tx ends.
func GetCopy(tx *Tx, c *Collection, key []byte) ([]byte, error) {
	v, err := Get(tx, c, key)
	if err != nil {
		return nil, err
	}

	return append([]byte(nil), v...), nil
}

// Modify performs a read-modify-write on key within a single write
// transaction: fn receives the current value (nil if key is absent) and
// returns the new value, or (nil, nil) to delete an existing key. fn's
// input slice has the same zero-copy validity as Get's.
func Modify(tx *Tx, c *Collection, key []byte, fn func(existing []byte) ([]byte, error)) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	existing, err := Get(tx, c, key)
	if err != nil && !isNotFound(err) {
		return err
	}

	next, err := fn(existing)
	if err != nil {
		return wrap(err, withCollection(c.name), withKey(key))
	}

	if next == nil {
		if existing == nil {
			return nil
		}

		return Delete(tx, c, key)
	}

	return Upsert(tx, c, key, next)
}

// BatchInsert inserts every pair in order, stopping at the first error.
// It returns the number of pairs successfully inserted before any
// failure. On error the caller must Abort tx — the prior successful
// inserts remain only in the uncommitted transaction (spec.md §5
// Atomicity).
func BatchInsert(tx *Tx, c *Collection, pairs []KV) (int, error) {
	for i, kv := range pairs {
		if err := Insert(tx, c, kv.Key, kv.Value); err != nil {
			return i, err
		}
	}

	return len(pairs), nil
}

// BatchUpsert upserts every pair in order, stopping at the first error.
func BatchUpsert(tx *Tx, c *Collection, pairs []KV) (int, error) {
	for i, kv := range pairs {
		if err := Upsert(tx, c, kv.Key, kv.Value); err != nil {
			return i, err
		}
	}

	return len(pairs), nil
}

func isNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeNotFound
	}

	return false
}
