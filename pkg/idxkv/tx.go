package idxkv

import (
	"fmt"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// Tx is a read-only or read-write session against an Environment snapshot
// (spec.md §3 "Transaction", §4.2).
//
// Read transactions may be Reset (snapshot released, handle reusable) and
// Renew (fresh snapshot acquired). Write transactions are serialized by
// the engine; Commit or Abort consumes the handle. bbolt itself has no
// reset/renew concept for read transactions (each is single-use) — Tx
// emulates the contract by discarding and re-beginning the underlying
// engine transaction, so the *Tx handle stays valid across the cycle.
type Tx struct {
	env      *Environment
	eng      *engine.Tx
	readonly bool
	done     bool

	// counterSnapshots holds, per Collection touched by a mutating
	// primitive in this tx, the entry counter's value before the first
	// such touch. Abort restores it so a Collection handle reused across
	// many transactions (spec.md §3 "Collection handles are reusable")
	// never drifts from the committed counter after a discarded write.
	counterSnapshots map[*Collection]int64
}

// Begin starts a transaction against env. Write transactions are
// serialized by the underlying engine (spec.md §5: "Write transactions
// are serialized by the engine; at most one is live at any instant").
func (env *Environment) Begin(write bool) (*Tx, error) {
	if env == nil || env.closed.Load() {
		return nil, wrap(ErrClosed)
	}

	if write && env.readOnly {
		return nil, wrap(fmt.Errorf("%w: environment is read-only", ErrInvalid))
	}

	eng, err := env.engine.Begin(write)
	if err != nil {
		return nil, wrap(err)
	}

	return &Tx{env: env, eng: eng, readonly: !write}, nil
}

// IsReadOnly reports whether tx is a read-only transaction.
func (tx *Tx) IsReadOnly() bool {
	return tx.readonly
}

// Commit publishes all buffered changes atomically. Read transactions
// may also be committed (a no-op release) for symmetry with code that
// doesn't distinguish read/write at the call site.
func (tx *Tx) Commit() error {
	if tx == nil || tx.done {
		return wrap(fmt.Errorf("%w: transaction already closed", ErrInvalid))
	}

	tx.done = true

	err := tx.eng.Commit()
	if err != nil {
		return wrap(err)
	}

	return nil
}

// Abort discards the transaction. Infallible, matching spec.md §4.2.
//
// Any Collection counter touched by a mutating primitive in this tx is
// restored to its pre-tx value (spec.md §8 Atomicity: "committed state
// equals the state before the call — including the counter"). The
// engine rollback alone only discards the bucket writes; the in-memory
// counter on a reused Collection handle needs its own restoration since
// it was already bumped ahead of Commit/Abort.
func (tx *Tx) Abort() {
	if tx == nil || tx.done {
		return
	}

	tx.done = true

	if tx.eng != nil {
		tx.eng.Rollback()
	}

	for c, n := range tx.counterSnapshots {
		c.count.Store(n)
	}
}

// Reset releases a read-only transaction's snapshot without destroying
// the handle; Renew must be called before further use. Invalid on write
// transactions.
func (tx *Tx) Reset() error {
	if tx == nil || tx.done {
		return wrap(fmt.Errorf("%w: transaction already closed", ErrInvalid))
	}

	if !tx.readonly {
		return wrap(fmt.Errorf("%w: Reset is only valid on read-only transactions", ErrInvalid))
	}

	tx.eng.Rollback()
	tx.eng = nil

	return nil
}

// Renew reacquires a fresh snapshot for a Reset read-only transaction.
func (tx *Tx) Renew() error {
	if tx == nil || tx.done {
		return wrap(fmt.Errorf("%w: transaction already closed", ErrInvalid))
	}

	if !tx.readonly {
		return wrap(fmt.Errorf("%w: Renew is only valid on read-only transactions", ErrInvalid))
	}

	if tx.eng != nil {
		return wrap(fmt.Errorf("%w: Renew called on a transaction that was not Reset", ErrInvalid))
	}

	eng, err := tx.env.engine.Begin(false)
	if err != nil {
		return wrap(err)
	}

	tx.eng = eng

	return nil
}

// requireWritable returns ErrInvalid wrapped with context if tx is nil,
// closed, or read-only. Every mutating primitive calls this first
// (spec.md §4.6: "All mutating primitives require a write transaction;
// misuse yields an invalid-argument error").
func requireWritable(tx *Tx) error {
	if tx == nil || tx.done || tx.eng == nil {
		return wrap(fmt.Errorf("%w: transaction is closed", ErrInvalid))
	}

	if tx.readonly {
		return wrap(fmt.Errorf("%w: write transaction required", ErrInvalid))
	}

	return nil
}

func requireLive(tx *Tx) error {
	if tx == nil || tx.done || tx.eng == nil {
		return wrap(fmt.Errorf("%w: transaction is closed", ErrInvalid))
	}

	return nil
}

// bumpCounter atomically adjusts a collection's in-memory entry counter.
// Called only after the engine's put/del succeeds (spec.md §4.5: "the
// entry counter is updated only after the engine's put/del succeeds"),
// and only persists to the metadata bucket as part of the same write
// transaction (see Collection.persistCounter). It snapshots c's
// pre-touch value into tx on first use so Abort can restore it.
func bumpCounter(tx *Tx, c *Collection, delta int64) {
	if tx.counterSnapshots == nil {
		tx.counterSnapshots = make(map[*Collection]int64)
	}

	if _, ok := tx.counterSnapshots[c]; !ok {
		tx.counterSnapshots[c] = c.count.Load()
	}

	c.count.Add(delta)
}
