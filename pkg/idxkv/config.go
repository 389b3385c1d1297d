package idxkv

import (
	"time"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// envConfig collects the options an EnvOption may set. Unexported so the
// functional-option surface is the only way to populate it (spec.md §9
// follows the teacher's Config[T] pattern: a private struct plus typed
// option funcs).
type envConfig struct {
	mapSize   int64
	maxTxnOps int
	timeout   time.Duration
	readOnly  bool
	noSync    bool
	registry  *Registry

	faultpoint *engine.Faultpoint
}

func defaultEnvConfig() envConfig {
	return envConfig{
		timeout: time.Second,
	}
}

// EnvOption configures Open.
type EnvOption func(*envConfig)

// WithMapSize sets a soft ceiling on the data file size, checked after
// each write commit. Exceeding it surfaces as a MAP_FULL error; the
// caller recovers by calling Environment.Resize (spec.md §4.1, §6).
func WithMapSize(bytes int64) EnvOption {
	return func(c *envConfig) { c.mapSize = bytes }
}

// WithMaxTxnOps sets a soft ceiling on the number of mutating operations
// (index, main-tree, metadata and counter puts/deletes) within a single
// write transaction.
// Exceeding it surfaces as a TXN_FULL error (spec.md §6).
func WithMaxTxnOps(n int) EnvOption {
	return func(c *envConfig) { c.maxTxnOps = n }
}

// WithLockTimeout bounds how long Open waits to acquire the data file's
// advisory lock.
func WithLockTimeout(d time.Duration) EnvOption {
	return func(c *envConfig) { c.timeout = d }
}

// WithReadOnly opens the environment without acquiring the write lock.
// Write transactions against a read-only environment fail with
// ErrInvalid.
func WithReadOnly() EnvOption {
	return func(c *envConfig) { c.readOnly = true }
}

// WithNoSync disables fsync on commit. Faster, but a process crash can
// lose the most recent commits; never disables the engine's own
// write-ahead consistency (spec.md §7: "NoSync trades durability for
// throughput, not atomicity").
func WithNoSync() EnvOption {
	return func(c *envConfig) { c.noSync = true }
}

// WithRegistry supplies a pre-populated Registry instead of the empty one
// Open creates by default. Useful when a Registry is assembled once at
// process startup and shared across environments.
func WithRegistry(r *Registry) EnvOption {
	return func(c *envConfig) { c.registry = r }
}

// withFaultpoint is test-only: it is not exported because fault injection
// targets the internal engine adapter, not a stable public contract.
func withFaultpoint(fp *engine.Faultpoint) EnvOption {
	return func(c *envConfig) { c.faultpoint = fp }
}

// collectionConfig collects the options a CollectionOption may set.
type collectionConfig struct {
	compare       Comparator
	mergeFn       MergeFunc
	mergeUserData []byte
}

// CollectionOption configures OpenCollection.
type CollectionOption func(*collectionConfig)

// WithCollectionCompare sets a custom key comparator for the collection's
// main tree (spec.md §9). The comparator is stored on the returned handle
// whether or not the collection already holds records (unlike SetCompare,
// nothing is rejected here); since bbolt itself has no comparator hook,
// it never changes the on-disk byte-lexicographic key order.
func WithCollectionCompare(cmp Comparator) CollectionOption {
	return func(c *collectionConfig) { c.compare = cmp }
}

// WithMergeFunc installs the function Upsert calls to combine an existing
// value with a new one, plus opaque userData passed through on every
// call (spec.md §4.5 Upsert).
func WithMergeFunc(fn MergeFunc, userData []byte) CollectionOption {
	return func(c *collectionConfig) {
		c.mergeFn = fn
		c.mergeUserData = append([]byte(nil), userData...)
	}
}
