package idxkv_test

import (
	"testing"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

func seedScanFixture(t *testing.T) (*idxkv.Tx, *idxkv.Collection) {
	t.Helper()

	_, tx, c := openTestCollection(t, nil)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := idxkv.Insert(tx, c, []byte(k), []byte(k+"-value")); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	return tx, c
}

func Test_ScanRange_Ascending_Bounds(t *testing.T) {
	t.Parallel()

	tx, c := seedScanFixture(t)
	defer tx.Abort()

	var keys []string

	err := idxkv.ScanRange(tx, c, []byte("b"), []byte("d"), func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return true, nil
	})
	if err != nil {
		t.Fatalf("scan range: %v", err)
	}

	want := []string{"b", "c", "d"}
	if !equalStrings(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func Test_ScanRange_Nil_Bounds_Scans_Everything(t *testing.T) {
	t.Parallel()

	tx, c := seedScanFixture(t)
	defer tx.Abort()

	var keys []string

	err := idxkv.ScanRange(tx, c, nil, nil, func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return true, nil
	})
	if err != nil {
		t.Fatalf("scan range: %v", err)
	}

	want := []string{"a", "b", "c", "d", "e"}
	if !equalStrings(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func Test_ScanRange_Stops_Early_When_Fn_Returns_False(t *testing.T) {
	t.Parallel()

	tx, c := seedScanFixture(t)
	defer tx.Abort()

	var keys []string

	err := idxkv.ScanRange(tx, c, nil, nil, func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return len(keys) < 2, nil
	})
	if err != nil {
		t.Fatalf("scan range: %v", err)
	}

	want := []string{"a", "b"}
	if !equalStrings(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func Test_ScanReverse_Descending_Bounds(t *testing.T) {
	t.Parallel()

	tx, c := seedScanFixture(t)
	defer tx.Abort()

	var keys []string

	// start is the upper bound (inclusive), end the lower bound
	// (inclusive) — spec.md §4.7.
	err := idxkv.ScanReverse(tx, c, []byte("d"), []byte("b"), func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return true, nil
	})
	if err != nil {
		t.Fatalf("scan reverse: %v", err)
	}

	want := []string{"d", "c", "b"}
	if !equalStrings(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func Test_ScanReverse_Start_Not_An_Existing_Key_Steps_Back(t *testing.T) {
	t.Parallel()

	tx, c := seedScanFixture(t)
	defer tx.Abort()

	var keys []string

	// "cx" doesn't exist; the largest key <= "cx" is "c".
	err := idxkv.ScanReverse(tx, c, []byte("cx"), []byte("b"), func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return true, nil
	})
	if err != nil {
		t.Fatalf("scan reverse: %v", err)
	}

	want := []string{"c", "b"}
	if !equalStrings(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func Test_ScanPrefix_Matches_Only_Prefixed_Keys(t *testing.T) {
	t.Parallel()

	_, tx, c := openTestCollection(t, nil)
	defer tx.Abort()

	for _, k := range []string{"user:1", "user:2", "order:1"} {
		if err := idxkv.Insert(tx, c, []byte(k), []byte("v")); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	var keys []string

	err := idxkv.ScanPrefix(tx, c, []byte("user:"), func(key, _ []byte) (bool, error) {
		keys = append(keys, string(key))
		return true, nil
	})
	if err != nil {
		t.Fatalf("scan prefix: %v", err)
	}

	want := []string{"user:1", "user:2"}
	if !equalStrings(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func Test_ScanPrefix_AllOxFF_Prefix_Has_No_Upper_Bound(t *testing.T) {
	t.Parallel()

	_, tx, c := openTestCollection(t, nil)
	defer tx.Abort()

	prefix := []byte{0xFF, 0xFF}

	if err := idxkv.Insert(tx, c, prefix, []byte("v1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := idxkv.Insert(tx, c, append(append([]byte{}, prefix...), 0x01), []byte("v2")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n := 0

	err := idxkv.ScanPrefix(tx, c, prefix, func(key, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	if err != nil {
		t.Fatalf("scan prefix: %v", err)
	}

	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func Test_DeleteIf_Removes_Matching_And_Maintains_Indexes(t *testing.T) {
	t.Parallel()

	reg := idxkv.NewRegistry()
	if err := reg.Register(identityExtractorID, identityExtractor); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, tx, c := openTestCollection(t, reg)
	defer tx.Abort()

	if err := c.AddIndex(tx, idxkv.IndexConfig{Name: "by_value", ExtractorID: identityExtractorID}); err != nil {
		t.Fatalf("add index: %v", err)
	}

	for _, k := range []string{"a", "b", "c"} {
		if err := idxkv.Insert(tx, c, []byte(k), []byte(k)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := idxkv.DeleteIf(tx, c, nil, nil, func(key, _ []byte) (bool, error) {
		return string(key) == "b", nil
	})
	if err != nil {
		t.Fatalf("delete if: %v", err)
	}

	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}

	if c.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", c.Count())
	}

	_, err = idxkv.IndexSeekOne(tx, c, "by_value", []byte("b"))
	if !isErrCode(err, idxkv.ErrCodeNotFound) {
		t.Fatalf("expected the index entry for the deleted key to be gone, got %v", err)
	}
}

func Test_CollectRange_Honors_Limit(t *testing.T) {
	t.Parallel()

	tx, c := seedScanFixture(t)
	defer tx.Abort()

	kvs, err := idxkv.CollectRange(tx, c, nil, nil, 2)
	if err != nil {
		t.Fatalf("collect range: %v", err)
	}

	if len(kvs) != 2 {
		t.Fatalf("len = %d, want 2", len(kvs))
	}

	if string(kvs[0].Key) != "a" || string(kvs[1].Key) != "b" {
		t.Fatalf("unexpected keys: %q, %q", kvs[0].Key, kvs[1].Key)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
