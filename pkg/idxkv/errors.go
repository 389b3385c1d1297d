package idxkv

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/idxkv/pkg/idxkv/internal/engine"
)

// Code is a stable, compact error code for caller dispatch (spec.md §6).
type Code int

// Error taxonomy. Numeric values are stable across releases; callers may
// persist or transmit them.
const (
	// OK is never returned as an error; it exists so the zero Code reads
	// sensibly in logs.
	OK Code = iota
	// ErrCodeGeneric is a message-only error with no more specific code.
	ErrCodeGeneric
	// ErrCodeInvalid indicates the caller passed invalid arguments.
	ErrCodeInvalid
	// ErrCodeNoMem indicates an allocation failed.
	ErrCodeNoMem
	// ErrCodeKeyExists indicates the main-tree key is already present.
	ErrCodeKeyExists
	// ErrCodeNotFound indicates the main-tree key or index is absent.
	ErrCodeNotFound
	// ErrCodeMapFull indicates the engine is out of mapped space;
	// recoverable via Environment.Resize.
	ErrCodeMapFull
	// ErrCodeTxnFull indicates a write transaction exhausted its dirty-op
	// budget; recoverable by splitting the work across transactions.
	ErrCodeTxnFull
	// ErrCodeIndex indicates a unique-constraint violation, an extraction
	// failure, or a Verify mismatch.
	ErrCodeIndex
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case ErrCodeInvalid:
		return "EINVAL"
	case ErrCodeNoMem:
		return "ENOMEM"
	case ErrCodeKeyExists:
		return "KEY_EXISTS"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeMapFull:
		return "MAP_FULL"
	case ErrCodeTxnFull:
		return "TXN_FULL"
	case ErrCodeIndex:
		return "INDEX_ERROR"
	case ErrCodeGeneric:
		return "ERROR"
	default:
		return "ERROR"
	}
}

// Sentinel errors. Use errors.Is to check for these; use errors.As with
// *Error to recover structured context (collection/index/key).
var (
	ErrNotFound  = errors.New("not found")
	ErrKeyExists = errors.New("key already exists")
	ErrInvalid   = errors.New("invalid argument")
	ErrMapFull   = errors.New("map full")
	ErrTxnFull   = errors.New("transaction full")
	ErrIndex     = errors.New("index error")
	ErrClosed    = errors.New("environment closed")
)

// Error is the uniform error type returned by every fallible idxkv
// operation. It carries the taxonomy code (§6) plus whatever structured
// context (collection, index, key) was known at the point of failure.
//
// Formats as "<cause> (collection=X index=Y key=Z)", cause first so the
// message still reads naturally when context fields are absent.
type Error struct {
	Code       Code
	Collection string
	Index      string
	Key        []byte
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	suffix := e.suffix()
	if suffix == "" {
		return cause
	}

	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

func (e *Error) suffix() string {
	var parts []string

	if e.Collection != "" {
		parts = append(parts, "collection="+e.Collection)
	}

	if e.Index != "" {
		parts = append(parts, "index="+e.Index)
	}

	if e.Key != nil {
		parts = append(parts, fmt.Sprintf("key=%q", e.Key))
	}

	if len(parts) == 0 {
		return ""
	}

	out := "("

	for i, p := range parts {
		if i > 0 {
			out += " "
		}

		out += p
	}

	return out + ")"
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Is lets errors.Is match e against this package's sentinel for e.Code,
// so an engine-level cause (engine.ErrMapFull, engine.ErrTxnFull, ...)
// still satisfies errors.Is(err, ErrMapFull) and the like.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}

	sentinels := map[Code]error{ErrCodeNotFound: ErrNotFound, ErrCodeKeyExists: ErrKeyExists, ErrCodeMapFull: ErrMapFull, ErrCodeTxnFull: ErrTxnFull}

	return sentinels[e.Code] == target
}

// errOpt configures an *Error during construction via wrap.
type errOpt func(*Error)

func withCollection(name string) errOpt {
	return func(e *Error) { e.Collection = name }
}

func withIndex(name string) errOpt {
	return func(e *Error) { e.Index = name }
}

func withKey(key []byte) errOpt {
	return func(e *Error) { e.Key = key }
}

// wrap attaches taxonomy code and structured context to err, returning
// nil if err is nil. Inherits context from an already-wrapped *Error the
// way pkg/mddb/errors.go's wrap() does, so repeated wrapping at nested
// call sites doesn't lose (or duplicate) context.
func wrap(err error, opts ...errOpt) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		e := &Error{
			Code:       existing.Code,
			Collection: existing.Collection,
			Index:      existing.Index,
			Key:        existing.Key,
			Err:        existing.Err,
		}

		for _, opt := range opts {
			opt(e)
		}

		return e
	}

	e := &Error{Code: classify(err), Err: err}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// classify maps a raw sentinel/engine error to its taxonomy Code.
func classify(err error) Code {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, engine.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrKeyExists), errors.Is(err, engine.ErrKeyExists):
		return ErrCodeKeyExists
	case errors.Is(err, ErrInvalid):
		return ErrCodeInvalid
	case errors.Is(err, ErrMapFull), errors.Is(err, engine.ErrMapFull):
		return ErrCodeMapFull
	case errors.Is(err, ErrTxnFull), errors.Is(err, engine.ErrTxnFull):
		return ErrCodeTxnFull
	case errors.Is(err, ErrIndex):
		return ErrCodeIndex
	default:
		return ErrCodeGeneric
	}
}

// Recoverable reports whether err's taxonomy code denotes a condition the
// caller can recover from by retrying after corrective action (closing
// transactions and calling Environment.Resize for MAP_FULL, splitting
// the batch for TXN_FULL).
func Recoverable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Code {
	case ErrCodeMapFull, ErrCodeTxnFull:
		return true
	default:
		return false
	}
}
