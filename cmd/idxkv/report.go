package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"
)

// writeReportFile atomically writes v as indented JSON to path, the same
// rename-into-place technique the ticket CLI's binary cache uses to avoid
// ever leaving a half-written report behind for a concurrent reader.
func writeReportFile(path string, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	buf = append(buf, '\n')

	return atomic.WriteFile(path, bytes.NewReader(buf))
}
