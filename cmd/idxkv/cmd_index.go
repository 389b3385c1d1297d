package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

func newAddIndexCommand(cfg *Config) *Command {
	fs := flag.NewFlagSet("add-index", flag.ContinueOnError)
	skipPopulate := fs.Bool("no-populate", false, "don't scan existing records into the new index")

	return &Command{
		Flags: fs,
		Usage: "add-index <db-path> <collection> <index-name> <identity|identity-unique|prefix> [prefix-len]",
		Short: "Add (and by default populate) a secondary index using a built-in extractor.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 4 {
				return fmt.Errorf("usage: idxkv add-index <db-path> <collection> <index-name> <extractor> [prefix-len]")
			}

			id, ok := extractorIDByName(args[3])
			if !ok {
				return fmt.Errorf("unknown extractor %q (want identity, identity-unique, or prefix)", args[3])
			}

			var userData []byte

			if args[3] == "prefix" {
				if len(args) < 5 {
					return fmt.Errorf("prefix extractor requires [prefix-len]")
				}

				n, err := strconv.Atoi(args[4])
				if err != nil || n < 0 {
					return fmt.Errorf("invalid prefix-len %q", args[4])
				}

				userData = make([]byte, 4)
				binary.BigEndian.PutUint32(userData, uint32(n))
			}

			env, err := openEnv(args[0], *cfg, false)
			if err != nil {
				return err
			}
			defer env.Close()

			tx, err := env.Begin(true)
			if err != nil {
				return err
			}

			c, err := idxkv.OpenCollectionTx(tx, args[1])
			if err != nil {
				tx.Abort()
				return err
			}

			if err := c.AddIndex(tx, idxkv.IndexConfig{Name: args[2], ExtractorID: id, UserData: userData}); err != nil {
				tx.Abort()
				return err
			}

			if !*skipPopulate {
				if err := c.PopulateIndex(tx, args[2]); err != nil {
					tx.Abort()
					return err
				}
			}

			if err := tx.Commit(); err != nil {
				return err
			}

			o.Printf("added index %q on collection %q\n", args[2], args[1])

			return nil
		},
	}
}

func newDropIndexCommand(cfg *Config) *Command {
	return &Command{
		Usage: "drop-index <db-path> <collection> <index-name>",
		Short: "Remove a secondary index.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 3 {
				return fmt.Errorf("usage: idxkv drop-index <db-path> <collection> <index-name>")
			}

			env, err := openEnv(args[0], *cfg, false)
			if err != nil {
				return err
			}
			defer env.Close()

			tx, err := env.Begin(true)
			if err != nil {
				return err
			}

			c, err := idxkv.OpenCollectionTx(tx, args[1])
			if err != nil {
				tx.Abort()
				return err
			}

			if err := c.DropIndex(tx, args[2]); err != nil {
				tx.Abort()
				return err
			}

			if err := tx.Commit(); err != nil {
				return err
			}

			o.Printf("dropped index %q on collection %q\n", args[2], args[1])

			return nil
		},
	}
}
