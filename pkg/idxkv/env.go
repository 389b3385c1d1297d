// Package idxkv implements an embedded, transactional, ordered key-value
// store with automatic secondary-index maintenance over a memory-mapped
// B+-tree engine (go.etcd.io/bbolt). A store is opened as an Environment,
// which hosts any number of named Collections; each Collection is a main
// tree of caller-defined keys/values plus zero or more secondary indexes
// kept consistent with the main tree inside the same write transaction
// that mutates it.
//
// The engine itself — page layout, mmap growth, on-disk transaction
// durability — is an external collaborator this package consumes through
// the internal/engine adapter, not a concern this package re-implements.
package idxkv

import (
	"sync/atomic"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// Environment is an open store: one bbolt data file, one extractor
// Registry, and the collections opened against it (spec.md §3
// "Environment").
type Environment struct {
	engine   *engine.DB
	registry *Registry
	path     string
	readOnly bool
	closed   atomic.Bool
}

// Open opens (creating if absent) the data file at path.
func Open(path string, opts ...EnvOption) (*Environment, error) {
	cfg := defaultEnvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := engine.Open(path, 0o600, engine.Options{
		MapSize:    cfg.mapSize,
		MaxTxnOps:  cfg.maxTxnOps,
		Timeout:    cfg.timeout,
		ReadOnly:   cfg.readOnly,
		NoSync:     cfg.noSync,
		Faultpoint: cfg.faultpoint,
	})
	if err != nil {
		return nil, wrap(err)
	}

	registry := cfg.registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Environment{
		engine:   db,
		registry: registry,
		path:     path,
		readOnly: cfg.readOnly,
	}, nil
}

// Close flushes and closes the data file. Safe to call more than once.
func (env *Environment) Close() error {
	if env == nil || !env.closed.CompareAndSwap(false, true) {
		return nil
	}

	return wrap(env.engine.Close())
}

// Path returns the data file path Open was called with.
func (env *Environment) Path() string {
	return env.path
}

// Registry returns the environment's extractor registry, so callers can
// Register extractors before opening collections whose persisted indexes
// reference them.
func (env *Environment) Registry() *Registry {
	return env.registry
}

// Resize raises (or lowers) the soft MapSize budget enforced after each
// write commit, the caller's recovery path from a MAP_FULL error
// (spec.md §6, §9).
func (env *Environment) Resize(bytes int64) {
	env.engine.SetMapSize(bytes)
}

// Stat reports engine-level statistics (free pages, open transactions,
// on-disk size), exposed for the admin CLI's stat subcommand (spec.md's
// Supplemented features).
type Stat struct {
	FreePageCount int
	OpenTxCount   int
	TxCount       int
	DataSize      int64
}

// Stat returns current engine statistics.
func (env *Environment) Stat() (Stat, error) {
	s, err := env.engine.Stats()
	if err != nil {
		return Stat{}, wrap(err)
	}

	return Stat{
		FreePageCount: s.FreePageCount,
		OpenTxCount:   s.OpenTxCount,
		TxCount:       s.TxCount,
		DataSize:      s.DataSize,
	}, nil
}

// Sync forces a flush to stable storage outside the normal commit path.
func (env *Environment) Sync() error {
	return wrap(env.engine.Sync())
}

// OpenCollection is the ergonomic, auto-transaction entry point: it
// opens a short write transaction (creating the collection's main tree
// and reloading its persisted indexes if needed), calls OpenCollectionTx,
// and commits. Thin convenience wrappers of this shape are explicitly an
// external, non-tested concern (spec.md §1); the tested primitive is
// OpenCollectionTx, which this just wraps.
func (env *Environment) OpenCollection(name string, opts ...CollectionOption) (*Collection, error) {
	tx, err := env.Begin(true)
	if err != nil {
		return nil, err
	}

	c, err := OpenCollectionTx(tx, name, opts...)
	if err != nil {
		tx.Abort()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return c, nil
}
