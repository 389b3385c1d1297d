package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

func newVerifyCommand(cfg *Config) *Command {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	full := fs.Bool("full", false, "report every individual mismatch, not just summary counts")
	out := fs.String("out", "", "write the report as JSON to this path (atomic rename)")

	return &Command{
		Flags: fs,
		Usage: "verify <db-path> <collection>",
		Short: "Check a collection's secondary indexes against its main tree.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: idxkv verify <db-path> <collection>")
			}

			env, err := openEnv(args[0], *cfg, true)
			if err != nil {
				return err
			}
			defer env.Close()

			tx, err := env.Begin(false)
			if err != nil {
				return err
			}
			defer tx.Abort()

			c, err := idxkv.OpenCollectionTx(tx, args[1])
			if err != nil {
				return err
			}

			var opts []idxkv.VerifyOption
			if *full {
				opts = append(opts, idxkv.WithFullReport())
			}

			report, err := idxkv.Verify(tx, c, opts...)
			if err != nil {
				return err
			}

			o.Printf("collection:       %s\n", report.CollectionName)
			o.Printf("records:          %d\n", report.RecordCount)
			o.Printf("persisted count:  %d\n", report.PersistedCount)
			o.Printf("counter mismatch: %v\n", report.CounterMismatch)
			o.Printf("missing entries:  %d\n", report.MissingIndexEntries)
			o.Printf("orphan entries:   %d\n", report.OrphanIndexEntries)
			o.Printf("unique violations:%d\n", report.UniqueViolations)

			for _, m := range report.Mismatches {
				o.Printf("  %-16s index=%s main_key=%s index_key=%s\n",
					m.Kind, m.Index, formatBytes(m.MainKey), formatBytes(m.IndexKey))
			}

			if !report.OK() {
				o.ErrPrintln("verify: inconsistencies found")
			}

			if *out != "" {
				if err := writeReportFile(*out, report); err != nil {
					return err
				}
			}

			if !report.OK() {
				return fmt.Errorf("verify found inconsistencies")
			}

			return nil
		},
	}
}
