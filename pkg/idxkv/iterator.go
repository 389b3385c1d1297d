package idxkv

import "github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"

// Iterator is an explicit cursor over a collection's main tree (spec.md
// §4.9 "Iterator"). Unlike ScanRange/ScanReverse, which drive the
// traversal via a callback, Iterator hands positioning control to the
// caller: First/Last/Next/Prev/Seek move it, Key/Value read the current
// position, and Delete removes the current entry while maintaining every
// secondary index.
//
// An Iterator is only valid for its owning Tx's lifetime and must not be
// used after the Tx is committed, aborted, or Reset.
type Iterator struct {
	tx  *Tx
	c   *Collection
	cur *engine.Cursor

	key, value []byte
	valid      bool
}

// NewIterator returns an Iterator over c's main tree within tx. The
// iterator starts unpositioned; call First, Last, or Seek before Key/
// Value/Delete.
func NewIterator(tx *Tx, c *Collection) (*Iterator, error) {
	if err := requireLive(tx); err != nil {
		return nil, err
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return nil, err
	}

	return &Iterator{tx: tx, c: c, cur: main.Cursor()}, nil
}

// First positions the iterator at the smallest key and reports whether
// any entry exists.
func (it *Iterator) First() bool {
	it.key, it.value = it.cur.First()
	it.valid = it.key != nil

	return it.valid
}

// Last positions the iterator at the largest key and reports whether any
// entry exists.
func (it *Iterator) Last() bool {
	it.key, it.value = it.cur.Last()
	it.valid = it.key != nil

	return it.valid
}

// Next advances to the next key in ascending order.
func (it *Iterator) Next() bool {
	it.key, it.value = it.cur.Next()
	it.valid = it.key != nil

	return it.valid
}

// Prev steps back to the previous key in ascending order.
func (it *Iterator) Prev() bool {
	it.key, it.value = it.cur.Prev()
	it.valid = it.key != nil

	return it.valid
}

// Seek positions the iterator at the first key >= key.
func (it *Iterator) Seek(key []byte) bool {
	it.key, it.value = it.cur.Seek(key)
	it.valid = it.key != nil

	return it.valid
}

// Valid reports whether the iterator currently sits on an entry.
func (it *Iterator) Valid() bool {
	return it.valid
}

// Key returns the zero-copy key at the current position, or nil if the
// iterator is not positioned on an entry.
func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}

	return it.key
}

// Value returns the zero-copy value at the current position, or nil if
// the iterator is not positioned on an entry.
func (it *Iterator) Value() []byte {
	if !it.valid {
		return nil
	}

	return it.value
}

// Delete removes the entry at the current position, maintaining every
// secondary index in the same write transaction (spec.md §9 design note:
// "iterator-delete always maintains indexes", no fast path that skips
// it). Requires a write transaction.
//
// After Delete the iterator is left unpositioned — bbolt's cursor stays
// anchored at the deleted slot until the next move, which this package
// does not rely on; call Next, Prev, or Seek again before reading Key/
// Value.
func (it *Iterator) Delete() error {
	if err := requireWritable(it.tx); err != nil {
		return err
	}

	if !it.valid {
		return wrap(ErrInvalid)
	}

	key := append([]byte(nil), it.key...)
	value := append([]byte(nil), it.value...)

	if err := indexesDelete(it.tx, it.c, key, value); err != nil {
		return err
	}

	if err := it.cur.Delete(engine.OpMainDelete); err != nil {
		return wrap(err, withCollection(it.c.name), withKey(key))
	}

	bumpCounter(it.tx, it.c, -1)

	it.key, it.value, it.valid = nil, nil, false

	return it.c.persistCounter(it.tx)
}

// Close releases the iterator. Iterators hold no resources outside the
// owning transaction, so this exists for symmetry with code that pairs
// every New with a Close.
func (it *Iterator) Close() error {
	return nil
}
