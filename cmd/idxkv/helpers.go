package main

import (
	"encoding/hex"
	"fmt"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

// openEnv opens the data file at path with cfg's defaults and the CLI's
// built-in extractor registry.
func openEnv(path string, cfg Config, readOnly bool) (*idxkv.Environment, error) {
	reg := idxkv.NewRegistry()
	if err := RegisterBuiltinExtractors(reg); err != nil {
		return nil, err
	}

	opts := []idxkv.EnvOption{idxkv.WithRegistry(reg)}

	if cfg.MapSize > 0 {
		opts = append(opts, idxkv.WithMapSize(cfg.MapSize))
	}

	if cfg.MaxTxnOps > 0 {
		opts = append(opts, idxkv.WithMaxTxnOps(cfg.MaxTxnOps))
	}

	if cfg.NoSync {
		opts = append(opts, idxkv.WithNoSync())
	}

	if readOnly {
		opts = append(opts, idxkv.WithReadOnly())
	}

	return idxkv.Open(path, opts...)
}

// formatBytes renders b as a quoted string if printable, hex otherwise —
// the same heuristic the sloty REPL's formatKey uses.
func formatBytes(b []byte) string {
	if len(b) == 0 {
		return "(empty)"
	}

	printable := true

	for _, c := range b {
		if c < 32 || c > 126 {
			printable = false
			break
		}
	}

	if printable {
		return fmt.Sprintf("%q", string(b))
	}

	return hex.EncodeToString(b)
}

// parseBytes parses user input as hex if it decodes cleanly, else as raw
// text bytes.
func parseBytes(s string) []byte {
	if raw, err := hex.DecodeString(s); err == nil && len(s)%2 == 0 {
		return raw
	}

	return []byte(s)
}
