package idxkv

import "bytes"

// ScanFunc is invoked once per matching entry during a scan. Key and
// value are zero-copy and only valid until the next ScanFunc call
// (spec.md §4.8 "Scans"). Returning cont=false stops the scan early
// without error; returning a non-nil error stops the scan and propagates
// the error, wrapped with collection/key context, to the scan's caller.
type ScanFunc func(key, value []byte) (cont bool, err error)

// ScanRange visits every (key, value) pair with start <= key <= end, in
// ascending key order (spec.md §4.7: end is inclusive). A nil start scans
// from the first key; a nil end scans to the last key.
func ScanRange(tx *Tx, c *Collection, start, end []byte, fn ScanFunc) error {
	if err := requireLive(tx); err != nil {
		return err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return err
	}

	cur := main.Cursor()

	var k, v []byte
	if start != nil {
		k, v = cur.Seek(start)
	} else {
		k, v = cur.First()
	}

	for ; k != nil; k, v = cur.Next() {
		if end != nil && bytes.Compare(k, end) > 0 {
			break
		}

		cont, err := fn(k, v)
		if err != nil {
			return wrap(err, withCollection(c.name), withKey(k))
		}

		if !cont {
			break
		}
	}

	return nil
}

// ScanReverse visits every (key, value) pair with end <= key <= start, in
// descending key order (spec.md §4.7: start is the upper bound
// inclusive, end the lower bound). A nil start starts from the last key;
// a nil end scans down to the first key.
func ScanReverse(tx *Tx, c *Collection, start, end []byte, fn ScanFunc) error {
	if err := requireLive(tx); err != nil {
		return err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return err
	}

	cur := main.Cursor()

	var k, v []byte
	if start != nil {
		k, v = cur.Seek(start)
		if k == nil {
			// No key >= start; the largest key <= start is the last one.
			k, v = cur.Last()
		} else if !bytes.Equal(k, start) {
			// Seek landed on the first key > start; step back to the
			// largest key <= start.
			k, v = cur.Prev()
		}
	} else {
		k, v = cur.Last()
	}

	for ; k != nil; k, v = cur.Prev() {
		if end != nil && bytes.Compare(k, end) < 0 {
			break
		}

		cont, err := fn(k, v)
		if err != nil {
			return wrap(err, withCollection(c.name), withKey(k))
		}

		if !cont {
			break
		}
	}

	return nil
}

// ScanPrefix visits every (key, value) pair whose key begins with
// prefix, in ascending key order.
func ScanPrefix(tx *Tx, c *Collection, prefix []byte, fn ScanFunc) error {
	end := prefixUpperBound(prefix)

	return ScanRange(tx, c, prefix, end, func(key, value []byte) (bool, error) {
		if !hasBytePrefix(key, prefix) {
			return false, nil
		}

		return fn(key, value)
	})
}

// prefixUpperBound returns the smallest key strictly greater than every
// key with the given prefix, or nil if no finite upper bound exists
// (prefix is empty, or all-0xFF). Standard lexicographic-prefix-scan
// technique: increment the last byte that isn't already 0xFF, dropping
// any trailing 0xFF bytes.
func prefixUpperBound(prefix []byte) []byte {
	bound := append([]byte(nil), prefix...)

	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] != 0xFF {
			bound[i]++
			return bound[:i+1]
		}
	}

	return nil
}

// DeleteIf deletes every (key, value) pair with start <= key <= end for
// which pred returns true, maintaining every secondary index for each
// deletion. Matching keys are collected before any deletion begins, so
// mutating the main tree mid-scan (via the deletes themselves) can't
// perturb the scan. Returns the number of records deleted.
func DeleteIf(tx *Tx, c *Collection, start, end []byte, pred func(key, value []byte) (bool, error)) (int, error) {
	if err := requireWritable(tx); err != nil {
		return 0, err
	}

	var toDelete [][]byte

	err := ScanRange(tx, c, start, end, func(key, value []byte) (bool, error) {
		match, err := pred(key, value)
		if err != nil {
			return false, err
		}

		if match {
			toDelete = append(toDelete, append([]byte(nil), key...))
		}

		return true, nil
	})
	if err != nil {
		return 0, err
	}

	for i, key := range toDelete {
		if err := Delete(tx, c, key); err != nil {
			return i, err
		}
	}

	return len(toDelete), nil
}

// CollectRange scans [start, end] in ascending order and returns up to
// limit caller-owned KV pairs (limit <= 0 means unlimited). A convenience
// wrapper over ScanRange for callers that want a slice rather than a
// callback.
func CollectRange(tx *Tx, c *Collection, start, end []byte, limit int) ([]KV, error) {
	var out []KV

	err := ScanRange(tx, c, start, end, func(key, value []byte) (bool, error) {
		out = append(out, KV{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), value...),
		})

		return limit <= 0 || len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
