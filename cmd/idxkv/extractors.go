package main

import (
	"encoding/binary"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

// The admin CLI operates on collections without compiled-in domain
// knowledge, so it ships a small fixed set of built-in extractors an
// operator can attach to a collection by name from the command line.
// A real application registers its own extractors instead; these exist
// only so `idxkv add-index` has something to point at.
var (
	// IdentityID indexes a record by its raw value, allowing duplicates.
	IdentityID = idxkv.NewExtractorID(1, 0)

	// IdentityUniqueID indexes a record by its raw value, rejecting a
	// second record with the same value.
	IdentityUniqueID = idxkv.NewExtractorID(1, idxkv.FlagUnique)

	// PrefixID indexes a record by the first N bytes of its value, where
	// N is encoded as a big-endian uint32 in the index's UserData. Values
	// shorter than N are skipped (sparse).
	PrefixID = idxkv.NewExtractorID(2, idxkv.FlagSparse)
)

func identityExtractor(value, _ []byte) ([]byte, error) {
	return value, nil
}

func prefixExtractor(value, userData []byte) ([]byte, error) {
	if len(userData) != 4 {
		return nil, idxkv.ErrSkip
	}

	n := binary.BigEndian.Uint32(userData)
	if uint32(len(value)) < n {
		return nil, idxkv.ErrSkip
	}

	return value[:n], nil
}

// RegisterBuiltinExtractors populates reg with the CLI's fixed extractor
// set. Called once at startup before any collection is opened.
func RegisterBuiltinExtractors(reg *idxkv.Registry) error {
	if err := reg.Register(IdentityID, identityExtractor); err != nil {
		return err
	}

	if err := reg.Register(IdentityUniqueID, identityExtractor); err != nil {
		return err
	}

	return reg.Register(PrefixID, prefixExtractor)
}

// extractorIDByName resolves a CLI-facing extractor name to its ID.
func extractorIDByName(name string) (idxkv.ExtractorID, bool) {
	switch name {
	case "identity":
		return IdentityID, true
	case "identity-unique":
		return IdentityUniqueID, true
	case "prefix":
		return PrefixID, true
	default:
		return 0, false
	}
}
