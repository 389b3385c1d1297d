package main

import (
	"context"
	"fmt"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

func newGetCommand(cfg *Config) *Command {
	return &Command{
		Usage: "get <db-path> <collection> <key>",
		Short: "Fetch a single record by key.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 3 {
				return fmt.Errorf("usage: idxkv get <db-path> <collection> <key>")
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

			value, err := idxkv.Get(tx, c, parseBytes(args[2]))
			if err != nil {
				return err
			}

			o.Println(formatBytes(value))

			return nil
		},
	}
}
