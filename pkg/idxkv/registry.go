package idxkv

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// ExtractorFlags packs per-index boolean properties into the low bits of
// an ExtractorID (spec.md §3: "flags packs unique (bit 0) and sparse
// (bit 1)").
type ExtractorFlags uint32

const (
	// FlagUnique marks an index as permitting at most one main-tree key
	// per index key.
	FlagUnique ExtractorFlags = 1 << 0
	// FlagSparse marks an index whose extractor may skip records (the
	// source field is absent).
	FlagSparse ExtractorFlags = 1 << 1
)

// Unique reports whether the FlagUnique bit is set.
func (f ExtractorFlags) Unique() bool { return f&FlagUnique != 0 }

// Sparse reports whether the FlagSparse bit is set.
func (f ExtractorFlags) Sparse() bool { return f&FlagSparse != 0 }

// ExtractorID identifies an extractor function: the high 32 bits are the
// schema version in force when the index was created, the low 32 bits
// are ExtractorFlags. Persisted in the metadata record (spec.md §3) and
// looked up in the process-private Registry at collection-open time.
type ExtractorID uint64

// NewExtractorID packs a schema version and flag set into an ExtractorID.
func NewExtractorID(version uint32, flags ExtractorFlags) ExtractorID {
	return ExtractorID(uint64(version)<<32 | uint64(flags))
}

// Version extracts the schema version from an ExtractorID.
func (id ExtractorID) Version() uint32 { return uint32(id >> 32) }

// Flags extracts the flag set from an ExtractorID.
func (id ExtractorID) Flags() ExtractorFlags { return ExtractorFlags(uint32(id)) }

func (id ExtractorID) String() string {
	return fmt.Sprintf("v%d/0x%x", id.Version(), uint32(id))
}

// ErrSkip is returned by an ExtractorFunc to signal "this record has no
// value for this index" (spec.md §4.4, used by sparse indexes). Returning
// ErrSkip from a non-sparse index's extractor is itself an error — the
// caller of the extractor (indexInsertOne) treats that as ErrIndex.
var ErrSkip = fmt.Errorf("idxkv: skip record")

// ExtractorFunc derives an index key from a main-tree value and the
// index's opaque user data. It must be pure and deterministic in
// (value, userData): the same inputs must always produce the same
// output and the same skip decision, or index maintenance breaks (the
// same record would emit different keys on insert vs. delete — spec.md
// §4.4).
//
// Return (nil, ErrSkip) to skip this record. The returned key buffer is
// owned by the caller of ExtractorFunc (index maintenance frees it after
// use); implementations may return a newly allocated slice or a slice
// derived from value/userData as long as it is not retained elsewhere.
type ExtractorFunc func(value, userData []byte) ([]byte, error)

// Registry is a process-private mapping from ExtractorID to the function
// that implements it. Populated by the caller after Open and before
// opening any Collection whose persisted indexes reference those ids
// (spec.md §3 "Extractor registry").
//
// Safe for concurrent use: Register is expected at startup, Lookup on
// every collection open/reload, so a RWMutex favors the common read path
// the way mddb.MDDB's own concurrency doc describes its (different)
// read/write split.
type Registry struct {
	mu         sync.RWMutex
	extractors map[ExtractorID]ExtractorFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[ExtractorID]ExtractorFunc)}
}

// Register associates fn with id. Returns ErrInvalid if id is already
// registered — redefining a persisted extractor id is a configuration
// bug, not a runtime condition to silently tolerate (spec.md §4.1).
func (r *Registry) Register(id ExtractorID, fn ExtractorFunc) error {
	if fn == nil {
		return wrap(fmt.Errorf("%w: nil extractor func", ErrInvalid))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.extractors[id]; exists {
		return wrap(fmt.Errorf("%w: extractor %s already registered", ErrInvalid, id))
	}

	r.extractors[id] = fn

	return nil
}

// Lookup returns the function registered for id, or (nil, false) if
// none is registered.
func (r *Registry) Lookup(id ExtractorID) (ExtractorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.extractors[id]

	return fn, ok
}

// packUint32 / unpackUint32 are shared little-endian helpers used by the
// metadata codec (spec.md §3/§6 bit-exact layout).
func packUint32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

func unpackUint32(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}
