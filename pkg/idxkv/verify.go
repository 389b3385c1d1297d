package idxkv

import (
	"bytes"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// MismatchKind classifies one inconsistency Verify found.
type MismatchKind int

const (
	// MismatchMissing: a main-tree record has no corresponding entry in
	// one of its non-skipped indexes.
	MismatchMissing MismatchKind = iota
	// MismatchOrphan: an index entry's main key is absent from the main
	// tree, or its value no longer extracts to the index key it is filed
	// under.
	MismatchOrphan
	// MismatchUniqueViolation: a unique index's duplicate set holds more
	// than one main key for the same index key.
	MismatchUniqueViolation
)

func (k MismatchKind) String() string {
	switch k {
	case MismatchMissing:
		return "missing"
	case MismatchOrphan:
		return "orphan"
	case MismatchUniqueViolation:
		return "unique_violation"
	default:
		return "unknown"
	}
}

// Mismatch describes one inconsistency found by Verify. Only populated
// in VerifyReport.Mismatches when WithFullReport is passed.
type Mismatch struct {
	Index    string
	Kind     MismatchKind
	MainKey  []byte
	IndexKey []byte
}

// VerifyReport summarizes Verify's findings for one collection (spec.md
// §4.11 "Verify", Supplemented with a full per-mismatch report).
type VerifyReport struct {
	CollectionName string
	RecordCount    uint64

	CounterMismatch bool
	PersistedCount  uint64

	MissingIndexEntries int
	OrphanIndexEntries  int
	UniqueViolations    int

	// Mismatches holds one entry per inconsistency found, in the order
	// discovered. Only populated when WithFullReport is passed.
	Mismatches []Mismatch
}

// OK reports whether Verify found zero inconsistencies.
func (r VerifyReport) OK() bool {
	return !r.CounterMismatch && r.MissingIndexEntries == 0 && r.OrphanIndexEntries == 0 && r.UniqueViolations == 0
}

type verifyConfig struct {
	full bool
}

// VerifyOption configures Verify.
type VerifyOption func(*verifyConfig)

// WithFullReport makes Verify record every individual Mismatch instead
// of only the summary counts.
func WithFullReport() VerifyOption {
	return func(c *verifyConfig) { c.full = true }
}

// Verify walks c's main tree and every non-skipped secondary index,
// cross-checking that:
//   - every main-tree record has a corresponding entry in each index
//     (no MissingIndexEntries),
//   - every index entry's main key exists and still extracts to the
//     index key it is filed under (no OrphanIndexEntries),
//   - every unique index's duplicate sets hold at most one main key
//     (no UniqueViolations),
//   - the collection's persisted entry counter matches the main tree's
//     actual record count (no CounterMismatch).
//
// Verify never mutates the store; repairing drift is PopulateIndex's
// job.
func Verify(tx *Tx, c *Collection, opts ...VerifyOption) (VerifyReport, error) {
	if err := requireLive(tx); err != nil {
		return VerifyReport{}, err
	}

	cfg := verifyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	engine.AdviseSequential(c.env.path)

	report := VerifyReport{CollectionName: c.name}

	main, err := c.mainBucket(tx)
	if err != nil {
		return VerifyReport{}, err
	}

	cur := main.Cursor()

	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		report.RecordCount++

		for _, desc := range c.indexes {
			if desc.skipped {
				continue
			}

			ib, err := c.indexBucket(tx, desc)
			if err != nil {
				return VerifyReport{}, err
			}

			indexKey, err := desc.extractor(v, desc.userData)
			if err != nil {
				if desc.sparse {
					continue
				}

				report.MissingIndexEntries++

				if cfg.full {
					report.Mismatches = append(report.Mismatches, Mismatch{
						Index: desc.name, Kind: MismatchMissing, MainKey: copyBytes(k),
					})
				}

				continue
			}

			nested := ib.Bucket(indexKey)
			if nested == nil || nested.Get(k) == nil {
				report.MissingIndexEntries++

				if cfg.full {
					report.Mismatches = append(report.Mismatches, Mismatch{
						Index: desc.name, Kind: MismatchMissing, MainKey: copyBytes(k), IndexKey: copyBytes(indexKey),
					})
				}
			}
		}
	}

	for _, desc := range c.indexes {
		if desc.skipped {
			continue
		}

		ib, err := c.indexBucket(tx, desc)
		if err != nil {
			return VerifyReport{}, err
		}

		outer := ib.Cursor()

		for ik, _ := outer.First(); ik != nil; ik, _ = outer.Next() {
			nested := ib.Bucket(ik)
			if nested == nil {
				continue
			}

			count := 0

			inner := nested.Cursor()

			for mk, _ := inner.First(); mk != nil; mk, _ = inner.Next() {
				count++

				value := main.Get(mk)
				if value == nil {
					report.OrphanIndexEntries++

					if cfg.full {
						report.Mismatches = append(report.Mismatches, Mismatch{
							Index: desc.name, Kind: MismatchOrphan, MainKey: copyBytes(mk), IndexKey: copyBytes(ik),
						})
					}

					continue
				}

				recomputed, err := desc.extractor(value, desc.userData)
				if err != nil || !bytes.Equal(recomputed, ik) {
					report.OrphanIndexEntries++

					if cfg.full {
						report.Mismatches = append(report.Mismatches, Mismatch{
							Index: desc.name, Kind: MismatchOrphan, MainKey: copyBytes(mk), IndexKey: copyBytes(ik),
						})
					}
				}
			}

			if desc.unique && count > 1 {
				report.UniqueViolations++

				if cfg.full {
					report.Mismatches = append(report.Mismatches, Mismatch{
						Index: desc.name, Kind: MismatchUniqueViolation, IndexKey: copyBytes(ik),
					})
				}
			}
		}
	}

	if meta := tx.eng.Bucket(metaBucketName); meta != nil {
		if raw := meta.Get(counterKey(c.name)); raw != nil {
			report.PersistedCount = decodeCounter(raw)
		}
	}

	report.CounterMismatch = report.PersistedCount != report.RecordCount

	return report, nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	return append([]byte(nil), b...)
}
