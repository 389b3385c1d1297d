package idxkv

import (
	"testing"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

func newVerifyTestEnv(t *testing.T) (*Environment, *Registry) {
	t.Helper()

	reg := NewRegistry()

	env, err := Open(t.TempDir()+"/verify.db", WithRegistry(reg))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Cleanup(func() { _ = env.Close() })

	return env, reg
}

func Test_Verify_OK_On_A_Clean_Collection(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(identityExtractorIDForVerify, identityExtractorForVerify); err != nil {
		t.Fatalf("register: %v", err)
	}

	env, err := Open(t.TempDir()+"/verify.db", WithRegistry(reg))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Abort()

	c, err := OpenCollectionTx(tx, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := c.AddIndex(tx, IndexConfig{Name: "by_value", ExtractorID: identityExtractorIDForVerify}); err != nil {
		t.Fatalf("add index: %v", err)
	}

	if err := Insert(tx, c, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	report, err := Verify(tx, c)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if !report.OK() {
		t.Fatalf("expected a clean report, got %+v", report)
	}
}

func Test_Verify_Reports_Missing_For_An_Unpopulated_Index(t *testing.T) {
	t.Parallel()

	env, reg := newVerifyTestEnv(t)

	if err := reg.Register(identityExtractorIDForVerify, identityExtractorForVerify); err != nil {
		t.Fatalf("register: %v", err)
	}

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Abort()

	c, err := OpenCollectionTx(tx, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := Insert(tx, c, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// AddIndex after the record already exists, without PopulateIndex:
	// the index never saw this record.
	if err := c.AddIndex(tx, IndexConfig{Name: "by_value", ExtractorID: identityExtractorIDForVerify}); err != nil {
		t.Fatalf("add index: %v", err)
	}

	report, err := Verify(tx, c, WithFullReport())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if report.MissingIndexEntries != 1 {
		t.Fatalf("MissingIndexEntries = %d, want 1", report.MissingIndexEntries)
	}

	if len(report.Mismatches) != 1 || report.Mismatches[0].Kind != MismatchMissing {
		t.Fatalf("unexpected mismatches: %+v", report.Mismatches)
	}
}

func Test_Verify_Reports_Orphan_For_A_Stale_Index_Entry(t *testing.T) {
	t.Parallel()

	env, reg := newVerifyTestEnv(t)

	if err := reg.Register(identityExtractorIDForVerify, identityExtractorForVerify); err != nil {
		t.Fatalf("register: %v", err)
	}

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Abort()

	c, err := OpenCollectionTx(tx, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := c.AddIndex(tx, IndexConfig{Name: "by_value", ExtractorID: identityExtractorIDForVerify}); err != nil {
		t.Fatalf("add index: %v", err)
	}

	if err := Insert(tx, c, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Plant an index entry pointing at a main key that was never
	// inserted, bypassing indexesInsert entirely.
	desc := c.indexByName["by_value"]

	ib, err := c.indexBucket(tx, desc)
	if err != nil {
		t.Fatalf("index bucket: %v", err)
	}

	nested, err := ib.CreateBucketIfNotExists([]byte("ghost-value"))
	if err != nil {
		t.Fatalf("create nested bucket: %v", err)
	}

	if err := nested.Put(engine.OpIndexPut, []byte("ghost-key"), []byte{}, false); err != nil {
		t.Fatalf("put: %v", err)
	}

	report, err := Verify(tx, c, WithFullReport())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if report.OrphanIndexEntries != 1 {
		t.Fatalf("OrphanIndexEntries = %d, want 1", report.OrphanIndexEntries)
	}

	if len(report.Mismatches) != 1 || report.Mismatches[0].Kind != MismatchOrphan {
		t.Fatalf("unexpected mismatches: %+v", report.Mismatches)
	}
}

func Test_Verify_Reports_Unique_Violation(t *testing.T) {
	t.Parallel()

	env, reg := newVerifyTestEnv(t)

	uniqueID := NewExtractorID(1, FlagUnique)
	if err := reg.Register(uniqueID, identityExtractorForVerify); err != nil {
		t.Fatalf("register: %v", err)
	}

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Abort()

	c, err := OpenCollectionTx(tx, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := c.AddIndex(tx, IndexConfig{Name: "by_value", ExtractorID: uniqueID}); err != nil {
		t.Fatalf("add index: %v", err)
	}

	if err := Insert(tx, c, []byte("k1"), []byte("same")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := Insert(tx, c, []byte("k2"), []byte("other")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Force a second main key into k1's unique duplicate set directly,
	// bypassing indexInsertOne's uniqueness check.
	desc := c.indexByName["by_value"]

	ib, err := c.indexBucket(tx, desc)
	if err != nil {
		t.Fatalf("index bucket: %v", err)
	}

	nested := ib.Bucket([]byte("same"))
	if nested == nil {
		t.Fatal("expected a nested bucket for index key \"same\"")
	}

	if err := nested.Put(engine.OpIndexPut, []byte("k2"), []byte{}, false); err != nil {
		t.Fatalf("put: %v", err)
	}

	report, err := Verify(tx, c, WithFullReport())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if report.UniqueViolations != 1 {
		t.Fatalf("UniqueViolations = %d, want 1", report.UniqueViolations)
	}
}

func Test_Verify_Reports_Counter_Mismatch(t *testing.T) {
	t.Parallel()

	env, _ := newVerifyTestEnv(t)

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Abort()

	c, err := OpenCollectionTx(tx, "docs")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	if err := Insert(tx, c, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Corrupt the in-memory (and then persisted) counter directly.
	c.count.Store(99)
	if err := c.persistCounter(tx); err != nil {
		t.Fatalf("persist counter: %v", err)
	}

	report, err := Verify(tx, c)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if !report.CounterMismatch {
		t.Fatal("expected CounterMismatch true")
	}

	if report.PersistedCount != 99 || report.RecordCount != 1 {
		t.Fatalf("PersistedCount=%d RecordCount=%d", report.PersistedCount, report.RecordCount)
	}
}

var identityExtractorIDForVerify = NewExtractorID(1, 0)

func identityExtractorForVerify(value, _ []byte) ([]byte, error) { return value, nil }
