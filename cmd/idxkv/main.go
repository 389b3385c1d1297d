// idxkv is an admin CLI for inspecting and maintaining idxkv data files:
// engine statistics, index verification, index add/drop/populate, key/
// prefix scans, and an interactive REPL.
//
// Usage:
//
//	idxkv [--config <path>] <command> [args...]
//
// Commands:
//
//	stat <db-path>
//	verify <db-path> <collection> [--full] [--out <path>]
//	add-index <db-path> <collection> <index-name> <extractor> [prefix-len]
//	drop-index <db-path> <collection> <index-name>
//	scan <db-path> <collection> [--prefix <p>] [--limit <n>]
//	get <db-path> <collection> <key>
//	repl <db-path> <collection>
package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, _ *os.File, stdout, stderr *os.File) int {
	o := NewIO(stdout, stderr)

	top := flag.NewFlagSet("idxkv", flag.ContinueOnError)
	top.SetOutput(stderr)

	configPath := top.String("config", "", "path to a JWCC config file (default: .idxkv.jsonc or $HOME/.idxkv.jsonc)")

	top.Usage = func() {
		fmt.Fprintln(stderr, "Usage: idxkv [--config <path>] <command> [args...]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Commands:")

		for _, cmd := range commandList(&Config{}) {
			fmt.Fprintf(stderr, "  %-10s %s\n", cmd.Name(), cmd.Short)
		}
	}

	if err := top.Parse(args); err != nil {
		return 2
	}

	rest := top.Args()
	if len(rest) == 0 {
		top.Usage()
		return 2
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	for _, cmd := range commandList(&cfg) {
		if cmd.Name() == rest[0] {
			return cmd.Run(context.Background(), o, rest[1:])
		}
	}

	o.ErrPrintln("unknown command:", rest[0])
	top.Usage()

	return 2
}

func commandList(cfg *Config) []*Command {
	return []*Command{
		newStatCommand(cfg),
		newVerifyCommand(cfg),
		newAddIndexCommand(cfg),
		newDropIndexCommand(cfg),
		newScanCommand(cfg),
		newGetCommand(cfg),
		newReplCommand(cfg),
	}
}
