package engine

// Cursor navigates a Bucket's direct entries in byte-comparable key
// order. All returned slices are zero-copy and valid only until the next
// navigation call or the end of the enclosing transaction.
type Cursor struct {
	bolt   cursor
	bucket *Bucket
}

// cursor is the subset of *bbolt.Cursor this package uses; declared as
// an interface only so Cursor's zero value can't be mistaken for usable.
type cursor interface {
	First() ([]byte, []byte)
	Last() ([]byte, []byte)
	Next() ([]byte, []byte)
	Prev() ([]byte, []byte)
	Seek(seek []byte) ([]byte, []byte)
	Delete() error
}

// First positions at the first entry.
func (c *Cursor) First() (key, value []byte) { return c.bolt.First() }

// Last positions at the last entry.
func (c *Cursor) Last() (key, value []byte) { return c.bolt.Last() }

// Next advances to the next entry.
func (c *Cursor) Next() (key, value []byte) { return c.bolt.Next() }

// Prev steps back to the previous entry.
func (c *Cursor) Prev() (key, value []byte) { return c.bolt.Prev() }

// Seek positions at the first key >= seek.
func (c *Cursor) Seek(seek []byte) (key, value []byte) { return c.bolt.Seek(seek) }

// Delete removes the entry at the cursor's current position.
func (c *Cursor) Delete(op Op) error {
	if err := c.bucket.checkFault(op); err != nil {
		return err
	}

	if err := c.bucket.tx.chargeOp(); err != nil {
		return err
	}

	return c.bolt.Delete()
}
