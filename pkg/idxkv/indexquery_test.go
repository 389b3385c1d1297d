package idxkv_test

import (
	"testing"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

func seedIndexFixture(t *testing.T) (*idxkv.Tx, *idxkv.Collection) {
	t.Helper()

	reg := idxkv.NewRegistry()
	if err := reg.Register(identityExtractorID, identityExtractor); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, tx, c := openTestCollection(t, reg)

	if err := c.AddIndex(tx, idxkv.IndexConfig{Name: "by_value", ExtractorID: identityExtractorID}); err != nil {
		t.Fatalf("add index: %v", err)
	}

	data := map[string]string{
		"k1": "same",
		"k2": "same",
		"k3": "other",
	}

	for _, k := range []string{"k1", "k2", "k3"} {
		if err := idxkv.Insert(tx, c, []byte(k), []byte(data[k])); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	return tx, c
}

func Test_IndexSeek_Visits_All_MainKeys_For_A_Shared_IndexKey(t *testing.T) {
	t.Parallel()

	tx, c := seedIndexFixture(t)
	defer tx.Abort()

	var got []string

	err := idxkv.IndexSeek(tx, c, "by_value", []byte("same"), func(mainKey []byte) (bool, error) {
		got = append(got, string(mainKey))
		return true, nil
	})
	if err != nil {
		t.Fatalf("index seek: %v", err)
	}

	if !equalStrings(got, []string{"k1", "k2"}) {
		t.Fatalf("got %v, want [k1 k2]", got)
	}
}

func Test_IndexSeek_Unknown_Index_Returns_NotFound(t *testing.T) {
	t.Parallel()

	tx, c := seedIndexFixture(t)
	defer tx.Abort()

	err := idxkv.IndexSeek(tx, c, "no_such_index", []byte("same"), func([]byte) (bool, error) { return true, nil })
	if !isErrCode(err, idxkv.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func Test_IndexSeekOne_Returns_First_Match_Or_NotFound(t *testing.T) {
	t.Parallel()

	tx, c := seedIndexFixture(t)
	defer tx.Abort()

	mk, err := idxkv.IndexSeekOne(tx, c, "by_value", []byte("other"))
	if err != nil || string(mk) != "k3" {
		t.Fatalf("IndexSeekOne = %q, %v", mk, err)
	}

	_, err = idxkv.IndexSeekOne(tx, c, "by_value", []byte("missing"))
	if !isErrCode(err, idxkv.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound for a missing index key, got %v", err)
	}
}

func Test_IndexSeekRange_Visits_Pairs_In_Order(t *testing.T) {
	t.Parallel()

	tx, c := seedIndexFixture(t)
	defer tx.Abort()

	type pair struct{ ik, mk string }

	var got []pair

	err := idxkv.IndexSeekRange(tx, c, "by_value", nil, nil, func(indexKey, mainKey []byte) (bool, error) {
		got = append(got, pair{string(indexKey), string(mainKey)})
		return true, nil
	})
	if err != nil {
		t.Fatalf("index seek range: %v", err)
	}

	want := []pair{{"other", "k3"}, {"same", "k1"}, {"same", "k2"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
