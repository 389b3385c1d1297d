package main

import (
	"context"
	"errors"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines one idxkv subcommand with unified help generation,
// following the tk CLI's pflag-per-subcommand pattern.
type Command struct {
	// Flags defines command-specific flags; may be nil.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "idxkv".
	Usage string

	// Short is a one-line description for the top-level help listing.
	Short string

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// PrintHelp prints "idxkv <cmd> --help" output.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: idxkv", c.Usage)
	o.Println()
	o.Println(c.Short)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder

		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command, returning a process exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	if c.Flags == nil {
		c.Flags = flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	}

	c.Flags.SetOutput(&strings.Builder{})

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}

		o.ErrPrintln("error:", err)
		c.PrintHelp(o)

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	return 0
}
