package idxkv

import (
	"fmt"
	"sync/atomic"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// MergeFunc combines an existing value with an incoming one for Upsert,
// given the opaque userData passed to WithMergeFunc (spec.md §4.5).
// Returning an error aborts the Upsert; no write is made.
type MergeFunc func(existing, incoming, userData []byte) ([]byte, error)

// Collection is an opened named sub-tree plus its secondary indexes
// (spec.md §3 "Collection"). A Collection handle is reusable across many
// transactions — it holds no live engine resources of its own, only the
// name, the loaded index descriptors, and an in-memory entry counter.
type Collection struct {
	env        *Environment
	name       string
	bucketName []byte

	indexes    []*indexDescriptor
	indexByName map[string]*indexDescriptor

	compare       Comparator
	mergeFn       MergeFunc
	mergeUserData []byte

	count atomic.Int64
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Count returns the collection's current entry count.
func (c *Collection) Count() uint64 {
	return uint64(c.count.Load())
}

// HasIndex reports whether an index with the given name is registered.
func (c *Collection) HasIndex(name string) bool {
	_, ok := c.indexByName[name]
	return ok
}

// IndexCount returns the number of secondary indexes on this collection.
func (c *Collection) IndexCount() int {
	return len(c.indexes)
}

// IndexNames returns the names of every secondary index, in the order
// they were added (or loaded at open time).
func (c *Collection) IndexNames() []string {
	names := make([]string, len(c.indexes))
	for i, d := range c.indexes {
		names[i] = d.name
	}

	return names
}

// Close releases the collection handle. Collections hold no live engine
// resources outside a transaction, so this exists for symmetry with
// Environment.Close and API shapes that pair Open/Close.
func (c *Collection) Close() error {
	return nil
}

// OpenCollectionTx opens (creating if absent, within a write transaction)
// the named collection, loading any persisted secondary indexes and
// resolving their extractors against env's Registry (spec.md §4.3
// "open"). Indexes whose extractor id is not currently registered are
// loaded as skipped: still visible via IndexNames/HasIndex for
// introspection and DropIndex. Operations that add entries to a skipped
// index (Insert, Update, Upsert, PopulateIndex) and queries against it
// fail with ErrIndex instead of panicking; deletes leave its entries
// untouched, and Verify passes it over.
func OpenCollectionTx(tx *Tx, name string, opts ...CollectionOption) (*Collection, error) {
	if err := requireLive(tx); err != nil {
		return nil, err
	}

	if name == "" {
		return nil, wrap(fmt.Errorf("%w: empty collection name", ErrInvalid))
	}

	bucketName := []byte(name)

	if tx.readonly {
		if tx.eng.Bucket(bucketName) == nil {
			return nil, wrap(ErrNotFound, withCollection(name))
		}
	} else if _, err := tx.eng.CreateBucketIfNotExists(bucketName); err != nil {
		return nil, wrap(err, withCollection(name))
	}

	c := &Collection{
		env:         tx.env,
		name:        name,
		bucketName:  bucketName,
		indexByName: make(map[string]*indexDescriptor),
	}

	cfg := collectionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.compare = cfg.compare
	c.mergeFn = cfg.mergeFn
	c.mergeUserData = cfg.mergeUserData

	if err := c.loadMetadata(tx); err != nil {
		return nil, err
	}

	return c, nil
}

// loadMetadata discovers persisted index descriptors and the entry
// counter from the metadata bucket, if one exists yet.
func (c *Collection) loadMetadata(tx *Tx) error {
	meta := tx.eng.Bucket(metaBucketName)
	if meta == nil {
		return nil
	}

	prefix := metaKeyPrefix(c.name)

	cur := meta.Cursor()

	for k, v := cur.Seek(prefix); k != nil && hasBytePrefix(k, prefix); k, v = cur.Next() {
		indexName := string(k[len(prefix):])

		record, err := decodeMetadata(v)
		if err != nil {
			return wrap(err, withCollection(c.name), withIndex(indexName))
		}

		id := NewExtractorID(record.SchemaVersion, record.Flags)

		fn, ok := c.env.registry.Lookup(id)

		desc := newIndexDescriptor(c.name, IndexConfig{
			Name:        indexName,
			ExtractorID: id,
			UserData:    record.UserData,
		}, fn, !ok)

		c.indexes = append(c.indexes, desc)
		c.indexByName[indexName] = desc
	}

	if raw := meta.Get(counterKey(c.name)); raw != nil {
		c.count.Store(int64(decodeCounter(raw)))
	}

	return nil
}

// DeleteCollection removes the named collection's main tree, every
// secondary index bucket, all of its metadata records, and its persisted
// counter, within tx (spec.md §4.3 "drop").
func DeleteCollection(tx *Tx, name string) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	if err := tx.eng.DeleteBucket([]byte(name)); err != nil {
		return wrap(err, withCollection(name))
	}

	prefix := indexBucketPrefix(name)

	var indexBucketNames [][]byte

	if err := tx.eng.ForEachBucketName(prefix, func(n []byte) bool {
		indexBucketNames = append(indexBucketNames, append([]byte(nil), n...))
		return true
	}); err != nil {
		return wrap(err, withCollection(name))
	}

	for _, n := range indexBucketNames {
		if err := tx.eng.DeleteBucket(n); err != nil {
			return wrap(err, withCollection(name))
		}
	}

	meta := tx.eng.Bucket(metaBucketName)
	if meta != nil {
		metaPrefix := metaKeyPrefix(name)

		var metaKeys [][]byte

		cur := meta.Cursor()
		for k, _ := cur.Seek(metaPrefix); k != nil && hasBytePrefix(k, metaPrefix); k, _ = cur.Next() {
			metaKeys = append(metaKeys, append([]byte(nil), k...))
		}

		for _, k := range metaKeys {
			if err := meta.Delete(engine.OpIndexDelete, k); err != nil {
				return wrap(err, withCollection(name))
			}
		}

		if err := meta.Delete(engine.OpCounterPut, counterKey(name)); err != nil {
			return wrap(err, withCollection(name))
		}
	}

	return nil
}

// Exists reports whether the named collection's main tree is present.
func Exists(tx *Tx, name string) (bool, error) {
	if err := requireLive(tx); err != nil {
		return false, err
	}

	return tx.eng.Bucket([]byte(name)) != nil, nil
}

// SetCompare installs a custom key comparator for the collection's main
// tree. Only permitted before any records have been inserted (spec.md §9
// design note); bbolt itself has no comparator hook, so the comparator is
// only stored on the handle and does not change the on-disk
// byte-lexicographic key order a caller must already respect when picking
// keys.
func (c *Collection) SetCompare(cmp Comparator) error {
	if c.count.Load() != 0 {
		return wrap(fmt.Errorf("%w: SetCompare requires an empty collection", ErrInvalid), withCollection(c.name))
	}

	c.compare = cmp

	return nil
}

// SetMergeFunc installs (or replaces) the function Upsert uses to
// combine an existing value with an incoming one.
func (c *Collection) SetMergeFunc(fn MergeFunc, userData []byte) {
	c.mergeFn = fn
	c.mergeUserData = append([]byte(nil), userData...)
}

// AddIndex registers a new secondary index and persists its descriptor.
// The index bucket is created empty; existing records are not indexed
// until PopulateIndex is called (spec.md §4.3: "add_index" and
// "populate_index" are distinct operations).
func (c *Collection) AddIndex(tx *Tx, cfg IndexConfig) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	if cfg.Name == "" {
		return wrap(fmt.Errorf("%w: empty index name", ErrInvalid), withCollection(c.name))
	}

	if c.HasIndex(cfg.Name) {
		return wrap(fmt.Errorf("%w: index %q already exists", ErrInvalid, cfg.Name), withCollection(c.name))
	}

	fn, ok := c.env.registry.Lookup(cfg.ExtractorID)
	if !ok {
		return wrap(fmt.Errorf("%w: extractor %s is not registered", ErrInvalid, cfg.ExtractorID),
			withCollection(c.name), withIndex(cfg.Name))
	}

	desc := newIndexDescriptor(c.name, cfg, fn, false)

	if _, err := tx.eng.CreateBucketIfNotExists(desc.bucketName); err != nil {
		return wrap(err, withCollection(c.name), withIndex(cfg.Name))
	}

	meta, err := tx.eng.CreateBucketIfNotExists(metaBucketName)
	if err != nil {
		return wrap(err, withCollection(c.name), withIndex(cfg.Name))
	}

	record := metadataRecord{
		SchemaVersion: cfg.ExtractorID.Version(),
		Flags:         cfg.ExtractorID.Flags(),
		UserData:      cfg.UserData,
	}

	if err := meta.Put(engine.OpIndexPut, metaKey(c.name, cfg.Name), encodeMetadata(record), false); err != nil {
		return wrap(err, withCollection(c.name), withIndex(cfg.Name))
	}

	c.indexes = append(c.indexes, desc)
	c.indexByName[cfg.Name] = desc

	return nil
}

// DropIndex removes a secondary index: its bucket, its metadata record,
// and its in-memory descriptor.
func (c *Collection) DropIndex(tx *Tx, name string) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	desc, ok := c.indexByName[name]
	if !ok {
		return wrap(ErrNotFound, withCollection(c.name), withIndex(name))
	}

	if err := tx.eng.DeleteBucket(desc.bucketName); err != nil {
		return wrap(err, withCollection(c.name), withIndex(name))
	}

	if meta := tx.eng.Bucket(metaBucketName); meta != nil {
		if err := meta.Delete(engine.OpIndexDelete, metaKey(c.name, name)); err != nil {
			return wrap(err, withCollection(c.name), withIndex(name))
		}
	}

	delete(c.indexByName, name)

	for i, d := range c.indexes {
		if d == desc {
			c.indexes = append(c.indexes[:i], c.indexes[i+1:]...)
			break
		}
	}

	return nil
}

// PopulateIndex rebuilds a secondary index from scratch by scanning every
// record currently in the main tree, inside tx (spec.md §4.3
// "populate_index"). Any existing entries in the index bucket are
// cleared first, so PopulateIndex is safe to call again after records
// were inserted before the index existed, or to repair drift.
func (c *Collection) PopulateIndex(tx *Tx, name string) error {
	if err := requireWritable(tx); err != nil {
		return err
	}

	desc, ok := c.indexByName[name]
	if !ok {
		return wrap(ErrNotFound, withCollection(c.name), withIndex(name))
	}

	if desc.skipped {
		return wrap(fmt.Errorf("%w: extractor %s is not registered", ErrIndex, desc.extractorID),
			withCollection(c.name), withIndex(name))
	}

	if err := tx.eng.DeleteBucket(desc.bucketName); err != nil {
		return wrap(err, withCollection(c.name), withIndex(name))
	}

	indexBucket, err := tx.eng.CreateBucketIfNotExists(desc.bucketName)
	if err != nil {
		return wrap(err, withCollection(c.name), withIndex(name))
	}

	main, err := c.mainBucket(tx)
	if err != nil {
		return err
	}

	cur := main.Cursor()

	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		if err := indexInsertOne(indexBucket, desc, k, v); err != nil {
			return wrap(err, withCollection(c.name), withIndex(name), withKey(k))
		}
	}

	return nil
}

// mainBucket resolves the collection's main tree bucket within tx,
// returning ErrNotFound if it does not exist (e.g. a read-only
// transaction against a collection never created).
func (c *Collection) mainBucket(tx *Tx) (*engine.Bucket, error) {
	b := tx.eng.Bucket(c.bucketName)
	if b == nil {
		return nil, wrap(ErrNotFound, withCollection(c.name))
	}

	return b, nil
}

// indexBucket resolves a secondary index's bucket within tx.
func (c *Collection) indexBucket(tx *Tx, desc *indexDescriptor) (*engine.Bucket, error) {
	b := tx.eng.Bucket(desc.bucketName)
	if b == nil {
		return nil, wrap(ErrNotFound, withCollection(c.name), withIndex(desc.name))
	}

	return b, nil
}

// persistCounter writes the collection's current in-memory counter to
// the metadata bucket, as part of the same write transaction that
// changed it (spec.md §9 design note, option (a)).
func (c *Collection) persistCounter(tx *Tx) error {
	meta, err := tx.eng.CreateBucketIfNotExists(metaBucketName)
	if err != nil {
		return wrap(err, withCollection(c.name))
	}

	n := uint64(c.count.Load())

	if err := meta.Put(engine.OpCounterPut, counterKey(c.name), encodeCounter(n), false); err != nil {
		return wrap(err, withCollection(c.name))
	}

	return nil
}

func hasBytePrefix(b, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}

	if len(b) < len(prefix) {
		return false
	}

	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}

	return true
}
