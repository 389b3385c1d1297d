package main

import (
	"context"
	"fmt"
)

func newReplCommand(cfg *Config) *Command {
	return &Command{
		Usage: "repl <db-path> <collection>",
		Short: "Open an interactive shell against a collection.",
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: idxkv repl <db-path> <collection>")
			}

			env, err := openEnv(args[0], *cfg, false)
			if err != nil {
				return err
			}
			defer env.Close()

			c, err := env.OpenCollection(args[1])
			if err != nil {
				return err
			}

			repl := &REPL{env: env, coll: c}

			return repl.Run()
		},
	}
}
