package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

func newStatCommand(cfg *Config) *Command {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	out := fs.String("out", "", "write the report as JSON to this path (atomic rename)")

	return &Command{
		Flags: fs,
		Usage: "stat <db-path>",
		Short: "Print engine-level statistics for a data file.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("missing <db-path>")
			}

			env, err := openEnv(args[0], *cfg, true)
			if err != nil {
				return err
			}
			defer env.Close()

			stat, err := env.Stat()
			if err != nil {
				return err
			}

			o.Printf("path:             %s\n", env.Path())
			o.Printf("data size:        %d bytes\n", stat.DataSize)
			o.Printf("free pages:       %d\n", stat.FreePageCount)
			o.Printf("tx count:         %d\n", stat.TxCount)
			o.Printf("open tx count:    %d\n", stat.OpenTxCount)

			if *out != "" {
				return writeReportFile(*out, stat)
			}

			return nil
		},
	}
}
