package idxkv

// Comparator orders two byte slices the way bytes.Compare does (negative,
// zero, positive). Custom comparators are only permitted at index-creation
// time, before any records are inserted (spec.md §9: "set_compare on an
// existing, populated sub-tree is ambiguous in the engine's documentation;
// this spec permits it only at open time before any records are inserted").
type Comparator func(a, b []byte) int

// IndexConfig is the caller-facing description of a secondary index,
// passed to Collection.AddIndex (spec.md §4.3).
type IndexConfig struct {
	// Name must be unique within the owning collection.
	Name string

	// ExtractorID identifies the registered ExtractorFunc this index
	// uses. Must already be registered on the Environment's Registry.
	ExtractorID ExtractorID

	// UserData is copied into the descriptor and passed to the extractor
	// on every call (e.g. a field selector). May be nil.
	UserData []byte

	// KeyCompare is an optional comparator for index keys. It is kept on
	// the runtime descriptor only: it is not persisted, and index keys
	// stay in bbolt's byte-lexicographic order whether or not it is set.
	KeyCompare Comparator

	// ValueCompare is an optional comparator for the main-tree keys bound
	// to one index key (the sorted-duplicate set). Like KeyCompare it is
	// kept on the descriptor only and does not change the on-disk order.
	ValueCompare Comparator
}

// indexDescriptor is the runtime representation of a secondary index
// (spec.md §3 "Index descriptor"). The extractor function is a weak
// reference: the descriptor does not own it, the Registry does (spec.md
// §9 "Weak reference from index to extractor").
type indexDescriptor struct {
	name         string
	bucketName   []byte
	extractorID  ExtractorID
	extractor    ExtractorFunc
	userData     []byte
	unique       bool
	sparse       bool
	keyCompare   Comparator
	valueCompare Comparator

	// skipped is true when the persisted extractor id could not be
	// resolved in the Registry at open time. The descriptor still exists
	// (so DropIndex/introspection work); inserts into it and queries
	// against it fail cleanly with ErrIndex instead of crashing, while
	// deletes leave its entries untouched (spec.md §3/§9).
	skipped bool
}

func newIndexDescriptor(collection string, cfg IndexConfig, fn ExtractorFunc, skipped bool) *indexDescriptor {
	flags := cfg.ExtractorID.Flags()

	userData := make([]byte, len(cfg.UserData))
	copy(userData, cfg.UserData)

	return &indexDescriptor{
		name:         cfg.Name,
		bucketName:   indexBucketName(collection, cfg.Name),
		extractorID:  cfg.ExtractorID,
		extractor:    fn,
		userData:     userData,
		unique:       flags.Unique(),
		sparse:       flags.Sparse(),
		keyCompare:   cfg.KeyCompare,
		valueCompare: cfg.ValueCompare,
		skipped:      skipped,
	}
}
