package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

func newScanCommand(cfg *Config) *Command {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	prefix := fs.String("prefix", "", "only visit keys with this prefix (hex or text)")
	limit := fs.Int("limit", 20, "maximum number of entries to print (0 = unlimited)")

	return &Command{
		Flags: fs,
		Usage: "scan <db-path> <collection>",
		Short: "List records in a collection in key order.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: idxkv scan <db-path> <collection>")
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

			n := 0

			visit := func(key, value []byte) (bool, error) {
				n++
				o.Printf("%3d. %s => %s\n", n, formatBytes(key), formatBytes(value))

				return *limit <= 0 || n < *limit, nil
			}

			if *prefix != "" {
				err = idxkv.ScanPrefix(tx, c, parseBytes(*prefix), visit)
			} else {
				err = idxkv.ScanRange(tx, c, nil, nil, visit)
			}

			if err != nil {
				return err
			}

			if n == 0 {
				o.Println("(empty)")
			}

			return nil
		},
	}
}
