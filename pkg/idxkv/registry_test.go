package idxkv_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

func Test_ExtractorID_Packs_Version_And_Flags(t *testing.T) {
	t.Parallel()

	id := idxkv.NewExtractorID(7, idxkv.FlagUnique|idxkv.FlagSparse)

	require.EqualValues(t, 7, id.Version())
	require.True(t, id.Flags().Unique())
	require.True(t, id.Flags().Sparse())
}

func Test_Registry_Register_And_Lookup(t *testing.T) {
	t.Parallel()

	reg := idxkv.NewRegistry()
	id := idxkv.NewExtractorID(1, 0)

	_, ok := reg.Lookup(id)
	require.False(t, ok, "expected no function registered yet")

	fn := func(value, _ []byte) ([]byte, error) { return value, nil }

	require.NoError(t, reg.Register(id, fn))

	got, ok := reg.Lookup(id)
	require.True(t, ok, "expected a registered function")

	out, err := got([]byte("hi"), nil)
	require.NoError(t, err)
	require.Equal(t, "hi", string(out))
}

func Test_Registry_Register_Rejects_Duplicate_ID(t *testing.T) {
	t.Parallel()

	reg := idxkv.NewRegistry()
	id := idxkv.NewExtractorID(1, 0)
	fn := func(value, _ []byte) ([]byte, error) { return value, nil }

	require.NoError(t, reg.Register(id, fn))

	err := reg.Register(id, fn)
	require.ErrorIs(t, err, idxkv.ErrInvalid)
}

func Test_Registry_Register_Rejects_Nil_Func(t *testing.T) {
	t.Parallel()

	reg := idxkv.NewRegistry()

	err := reg.Register(idxkv.NewExtractorID(1, 0), nil)
	require.ErrorIs(t, err, idxkv.ErrInvalid)
}
