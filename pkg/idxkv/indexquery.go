package idxkv

import "bytes"

// IndexSeekFunc is invoked once per main-tree key bound to a queried
// index key. mainKey is zero-copy and only valid until the next call.
type IndexSeekFunc func(mainKey []byte) (cont bool, err error)

// IndexSeek visits every main-tree key whose extracted index key equals
// indexKey, in ascending main-key order (spec.md §4.10 "Index queries").
// For a unique index this visits at most one key.
func IndexSeek(tx *Tx, c *Collection, indexName string, indexKey []byte, fn IndexSeekFunc) error {
	if err := requireLive(tx); err != nil {
		return err
	}

	desc, ok := c.indexByName[indexName]
	if !ok {
		return wrap(ErrNotFound, withCollection(c.name), withIndex(indexName))
	}

	if desc.skipped {
		return wrap(ErrIndex, withCollection(c.name), withIndex(indexName))
	}

	ib, err := c.indexBucket(tx, desc)
	if err != nil {
		return err
	}

	nested := ib.Bucket(indexKey)
	if nested == nil {
		return nil
	}

	cur := nested.Cursor()

	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		cont, err := fn(k)
		if err != nil {
			return wrap(err, withCollection(c.name), withIndex(indexName), withKey(indexKey))
		}

		if !cont {
			break
		}
	}

	return nil
}

// IndexSeekOne returns the single main-tree key bound to indexKey on a
// unique index, or ErrNotFound if none exists. Calling it on a non-unique
// index still returns the first (smallest) bound key rather than an
// error, matching bbolt's fixed main-key ordering within a duplicate set.
func IndexSeekOne(tx *Tx, c *Collection, indexName string, indexKey []byte) ([]byte, error) {
	var found []byte

	err := IndexSeek(tx, c, indexName, indexKey, func(mainKey []byte) (bool, error) {
		found = append([]byte(nil), mainKey...)
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, wrap(ErrNotFound, withCollection(c.name), withIndex(indexName), withKey(indexKey))
	}

	return found, nil
}

// IndexRangeFunc is invoked once per (indexKey, mainKey) pair during an
// IndexSeekRange. Both slices are zero-copy and only valid until the next
// call.
type IndexRangeFunc func(indexKey, mainKey []byte) (cont bool, err error)

// IndexSeekRange visits every (indexKey, mainKey) pair with
// start <= indexKey <= end (spec.md §4.7: end is inclusive), indexKeys in
// ascending order and, within each indexKey, mainKeys in ascending
// order.
func IndexSeekRange(tx *Tx, c *Collection, indexName string, start, end []byte, fn IndexRangeFunc) error {
	if err := requireLive(tx); err != nil {
		return err
	}

	desc, ok := c.indexByName[indexName]
	if !ok {
		return wrap(ErrNotFound, withCollection(c.name), withIndex(indexName))
	}

	if desc.skipped {
		return wrap(ErrIndex, withCollection(c.name), withIndex(indexName))
	}

	ib, err := c.indexBucket(tx, desc)
	if err != nil {
		return err
	}

	outer := ib.Cursor()

	var ik []byte
	if start != nil {
		ik, _ = outer.Seek(start)
	} else {
		ik, _ = outer.First()
	}

	for ; ik != nil; ik, _ = outer.Next() {
		if end != nil && bytes.Compare(ik, end) > 0 {
			break
		}

		nested := ib.Bucket(ik)
		if nested == nil {
			continue
		}

		inner := nested.Cursor()

		stop := false

		for mk, _ := inner.First(); mk != nil; mk, _ = inner.Next() {
			cont, err := fn(ik, mk)
			if err != nil {
				return wrap(err, withCollection(c.name), withIndex(indexName), withKey(ik))
			}

			if !cont {
				stop = true
				break
			}
		}

		if stop {
			break
		}
	}

	return nil
}
