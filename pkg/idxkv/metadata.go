package idxkv

import (
	"fmt"
)

// metaBucketName is the reserved sub-tree holding persisted index
// metadata records and per-collection entry counters (spec.md §6: "name
// chosen by the implementation, e.g. __wtree3_index_meta__").
var metaBucketName = []byte("__idxkv_meta__")

// indexBucketName names a secondary index's sub-tree:
// "idx:<collection>:<index>" (spec.md §3/§6).
func indexBucketName(collection, index string) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s", collection, index))
}

// indexBucketPrefix returns the prefix shared by every index bucket name
// belonging to collection, used by DeleteCollection to find them all
// without decoding metadata records.
func indexBucketPrefix(collection string) []byte {
	return []byte("idx:" + collection + ":")
}

// metaKey is the metadata-bucket key for one index's descriptor:
// "<collection>:<index>" (spec.md §3).
func metaKey(collection, index string) []byte {
	return []byte(collection + ":" + index)
}

// metaKeyPrefix returns the prefix shared by every metaKey belonging to
// collection, used by Collection.loadMetadata to discover its indexes and by
// DeleteCollection to remove them all.
func metaKeyPrefix(collection string) []byte {
	return []byte(collection + ":")
}

// counterKey is the metadata-bucket key for a collection's persisted
// entry counter (spec.md §9 design note, option (a): "persist the
// counter in the metadata sub-tree under a reserved key").
func counterKey(collection string) []byte {
	return []byte("#count:" + collection)
}

// metadataRecord is the parsed form of the on-disk layout in spec.md §3/§6:
//
//	offset  size   field
//	0       4      schema_version
//	4       1      flags byte (bit 0 unique, bit 1 sparse)
//	5       4      user_data length N
//	9       N      user_data bytes
type metadataRecord struct {
	SchemaVersion uint32
	Flags         ExtractorFlags
	UserData      []byte
}

// reservedFlagMask covers bits 2..7, which spec.md requires be zero on
// write and ignored on read.
const reservedFlagMask = 0xFC

func encodeMetadata(m metadataRecord) []byte {
	buf := make([]byte, 9+len(m.UserData))

	packUint32(buf[0:4], m.SchemaVersion)
	buf[4] = byte(m.Flags) &^ reservedFlagMask
	packUint32(buf[5:9], uint32(len(m.UserData)))
	copy(buf[9:], m.UserData)

	return buf
}

func decodeMetadata(buf []byte) (metadataRecord, error) {
	if len(buf) < 9 {
		return metadataRecord{}, fmt.Errorf("%w: metadata record too short (%d bytes)", ErrInvalid, len(buf))
	}

	version := unpackUint32(buf[0:4])
	flags := ExtractorFlags(buf[4]) &^ reservedFlagMask
	n := unpackUint32(buf[5:9])

	if uint64(9+n) != uint64(len(buf)) {
		return metadataRecord{}, fmt.Errorf("%w: metadata user_data length mismatch (declared %d, have %d)",
			ErrInvalid, n, len(buf)-9)
	}

	userData := make([]byte, n)
	copy(userData, buf[9:])

	return metadataRecord{SchemaVersion: version, Flags: flags, UserData: userData}, nil
}

func encodeCounter(n uint64) []byte {
	buf := make([]byte, 8)
	packUint64(buf, n)

	return buf
}

func decodeCounter(buf []byte) uint64 {
	if len(buf) != 8 {
		return 0
	}

	return unpackUint64(buf)
}

func packUint64(dst []byte, v uint64) {
	packUint32(dst[0:4], uint32(v))
	packUint32(dst[4:8], uint32(v>>32))
}

func unpackUint64(src []byte) uint64 {
	lo := unpackUint32(src[0:4])
	hi := unpackUint32(src[4:8])

	return uint64(hi)<<32 | uint64(lo)
}
