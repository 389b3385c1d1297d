package idxkv

import (
	"errors"
	"testing"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// Test_Atomicity_Aborting_After_A_MidTransaction_Index_Failure_Leaves_No_Trace
// exercises spec.md §5's Atomicity property end to end: a fault is injected
// on the second index's put, Insert fails partway through index
// maintenance, and the test asserts that aborting the transaction (rather
// than trying to hand-unwind the first index's already-applied write)
// leaves the store exactly as it was before the Insert was attempted.
func Test_Atomicity_Aborting_After_A_MidTransaction_Index_Failure_Leaves_No_Trace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/atomic.db"

	reg := NewRegistry()
	idA := NewExtractorID(1, 0)
	idB := NewExtractorID(2, 0)

	if err := reg.Register(idA, identityExtractorForVerify); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := reg.Register(idB, identityExtractorForVerify); err != nil {
		t.Fatalf("register: %v", err)
	}

	// AddIndex's two metadata writes are OpIndexPut calls 1 and 2;
	// Insert's put into index a is call 3 and succeeds, index b's put is
	// call 4 and fails.
	fp := &engine.Faultpoint{
		Ops:   map[engine.Op]bool{engine.OpIndexPut: true},
		After: 4,
		Err:   engine.ErrInjected,
	}

	env, err := Open(dir, WithRegistry(reg), withFaultpoint(fp))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	c, err := OpenCollectionTx(tx, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := c.AddIndex(tx, IndexConfig{Name: "a", ExtractorID: idA}); err != nil {
		t.Fatalf("add index a: %v", err)
	}

	if err := c.AddIndex(tx, IndexConfig{Name: "b", ExtractorID: idB}); err != nil {
		t.Fatalf("add index b: %v", err)
	}

	err = Insert(tx, c, []byte("k1"), []byte("v1"))
	if !errors.Is(err, engine.ErrInjected) {
		t.Fatalf("expected the injected fault to surface, got %v", err)
	}

	tx.Abort()

	// A fresh transaction must see none of the partially-applied work:
	// not the main-tree record, not index a's entry that did succeed
	// before the fault fired.
	tx2, err := env.Begin(false)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx2.Abort()

	c2, err := OpenCollectionTx(tx2, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if c2.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after abort", c2.Count())
	}

	_, err = Get(tx2, c2, []byte("k1"))
	if !isNotFound(err) {
		t.Fatalf("expected k1 to not exist after abort, got %v", err)
	}

	_, err = IndexSeekOne(tx2, c2, "a", []byte("v1"))
	if !isNotFound(err) {
		t.Fatalf("expected index a to have no entry after abort, got %v", err)
	}
}

func Test_Atomicity_MapFull_Is_Recoverable_Via_Resize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/mapfull.db"

	// A 1-byte budget: the data file bbolt creates at Open is already
	// larger, so the first write commit reports MAP_FULL.
	env, err := Open(dir, WithMapSize(1))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	c, err := OpenCollectionTx(tx, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := Insert(tx, c, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = tx.Commit()
	if !errors.Is(err, ErrMapFull) {
		t.Fatalf("expected ErrMapFull, got %v", err)
	}

	if !Recoverable(err) {
		t.Fatal("expected MAP_FULL to be Recoverable")
	}

	env.Resize(1 << 30)

	tx2, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin after resize: %v", err)
	}
	defer tx2.Abort()

	c2, err := OpenCollectionTx(tx2, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := Insert(tx2, c2, []byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("insert after resize: %v", err)
	}

	if err := tx2.Commit(); err != nil {
		t.Fatalf("commit after resize: %v", err)
	}
}
