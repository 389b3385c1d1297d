package idxkv_test

import (
	"testing"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

// newTestEnv opens an Environment backed by a fresh temp-dir data file and
// returns it alongside its Registry, so callers can register extractors
// before opening collections. The Environment is closed automatically via
// t.Cleanup.
func newTestEnv(t *testing.T, opts ...idxkv.EnvOption) (*idxkv.Environment, *idxkv.Registry) {
	t.Helper()

	reg := idxkv.NewRegistry()

	allOpts := append([]idxkv.EnvOption{idxkv.WithRegistry(reg)}, opts...)

	env, err := idxkv.Open(t.TempDir()+"/test.db", allOpts...)
	if err != nil {
		t.Fatalf("idxkv.Open: %v", err)
	}

	t.Cleanup(func() { _ = env.Close() })

	return env, reg
}
