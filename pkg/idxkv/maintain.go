package idxkv

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// Secondary indexes are realized as nested buckets: the index bucket's
// top-level keys are extracted index keys (in byte-lexicographic order,
// since bbolt has no native sorted-duplicate bucket the way LMDB does);
// each top-level key maps to a nested bucket whose own keys are the
// main-tree keys that produced it, with an empty value. That nested
// bucket is the sorted-duplicate set emulation spec.md §4.4 describes.

// indexInsertOne derives value's index key via desc's extractor and adds
// mainKey to that key's duplicate set, enforcing uniqueness if desc is a
// unique index.
func indexInsertOne(indexBucket *engine.Bucket, desc *indexDescriptor, mainKey, value []byte) error {
	key, err := desc.extractor(value, desc.userData)
	if err != nil {
		if errors.Is(err, ErrSkip) {
			if desc.sparse {
				return nil
			}

			return fmt.Errorf("%w: non-sparse index extractor returned ErrSkip", ErrIndex)
		}

		return fmt.Errorf("%w: extractor failed: %w", ErrIndex, err)
	}

	nested, err := indexBucket.CreateBucketIfNotExists(key)
	if err != nil {
		return err
	}

	if desc.unique {
		existingKey, _ := nested.Cursor().First()
		if existingKey != nil && !bytes.Equal(existingKey, mainKey) {
			return fmt.Errorf("%w: unique index violation", ErrIndex)
		}
	}

	return nested.Put(engine.OpIndexPut, mainKey, []byte{}, false)
}

// indexDeleteOne removes mainKey from value's index key's duplicate set,
// dropping the now-empty nested bucket so index buckets don't accumulate
// stale top-level keys.
func indexDeleteOne(indexBucket *engine.Bucket, desc *indexDescriptor, mainKey, value []byte) error {
	key, err := desc.extractor(value, desc.userData)
	if err != nil {
		if errors.Is(err, ErrSkip) {
			return nil
		}

		return fmt.Errorf("%w: extractor failed: %w", ErrIndex, err)
	}

	nested := indexBucket.Bucket(key)
	if nested == nil {
		return nil
	}

	if err := nested.Delete(engine.OpIndexDelete, mainKey); err != nil {
		return err
	}

	if k, _ := nested.Cursor().First(); k == nil {
		return indexBucket.DeleteBucket(key)
	}

	return nil
}

// indexesInsert maintains every secondary index for a new main-tree
// (mainKey, value) pair, failing with ErrIndex as soon as it reaches a
// skipped index. On a mid-loop failure (a unique
// violation on index N, say), indexes 0..N-1 are left inserted inside
// the still-open write transaction; the caller must Abort tx so none of
// it is ever durable (spec.md §5 Atomicity — recovery is "discard the
// whole transaction", not "undo what was done so far").
func indexesInsert(tx *Tx, c *Collection, mainKey, value []byte) error {
	for _, desc := range c.indexes {
		if desc.skipped {
			return wrap(fmt.Errorf("%w: extractor %s is not registered", ErrIndex, desc.extractorID),
				withCollection(c.name), withIndex(desc.name), withKey(mainKey))
		}

		ib, err := c.indexBucket(tx, desc)
		if err != nil {
			return err
		}

		if err := indexInsertOne(ib, desc, mainKey, value); err != nil {
			return wrap(err, withCollection(c.name), withIndex(desc.name), withKey(mainKey))
		}
	}

	return nil
}

// indexesDelete maintains every non-skipped secondary index when a
// main-tree (mainKey, value) pair is removed. value is the pair's old
// value — the one the extractor produced the index entry from — not the
// new value in an Update (the caller is responsible for calling this
// with the pre-image before overwriting, see crud.go Update).
func indexesDelete(tx *Tx, c *Collection, mainKey, value []byte) error {
	for _, desc := range c.indexes {
		if desc.skipped {
			continue
		}

		ib, err := c.indexBucket(tx, desc)
		if err != nil {
			return err
		}

		if err := indexDeleteOne(ib, desc, mainKey, value); err != nil {
			return wrap(err, withCollection(c.name), withIndex(desc.name), withKey(mainKey))
		}
	}

	return nil
}
