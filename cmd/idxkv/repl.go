package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

// REPL is the interactive command loop for a single open collection,
// grounded in the sloty CLI's liner-based shell.
type REPL struct {
	env  *idxkv.Environment
	coll *idxkv.Collection
	line *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".idxkv_history")
}

// Run starts the REPL loop against env/collection until the user exits.
func (r *REPL) Run() error {
	r.line = liner.NewLiner()
	defer r.line.Close()

	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("idxkv - collection %q (%d index(es))\n", r.coll.Name(), r.coll.IndexCount())
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.line.Prompt("idxkv> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF { //nolint:errorlint // liner sentinel
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.line.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil
		case "help", "?":
			r.printHelp()
		case "get":
			r.cmdGet(args)
		case "put":
			r.cmdPut(args)
		case "del", "delete":
			r.cmdDelete(args)
		case "scan", "ls":
			r.cmdScan(args)
		case "prefix":
			r.cmdPrefix(args)
		case "index":
			r.cmdIndex(args)
		case "stat":
			r.cmdStat()
		case "verify":
			r.cmdVerify(args)
		case "count":
			fmt.Printf("%d\n", r.coll.Count())
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil { //nolint:gosec
		_, _ = r.line.WriteHistory(f)
		f.Close()
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"get", "put", "del", "delete", "scan", "ls", "prefix",
		"index", "stat", "verify", "count", "help", "exit", "quit", "q",
	}

	var out []string

	lower := strings.ToLower(line)

	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}

	return out
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  get <key>                       Fetch a record")
	fmt.Println("  put <key> <value>               Upsert a record")
	fmt.Println("  del <key>                       Delete a record")
	fmt.Println("  scan [limit]                    List records in key order")
	fmt.Println("  prefix <prefix> [limit]         List records with a key prefix")
	fmt.Println("  index <name> <key>              Look up records by a secondary index key")
	fmt.Println("  count                           Print the collection's entry count")
	fmt.Println("  verify [--full]                 Check index consistency")
	fmt.Println("  stat                            Print engine statistics")
	fmt.Println("  help                            Show this help")
	fmt.Println("  exit / quit / q                 Exit")
}

func (r *REPL) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: get <key>")
		return
	}

	tx, err := r.env.Begin(false)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer tx.Abort()

	value, err := idxkv.Get(tx, r.coll, parseBytes(args[0]))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Println(formatBytes(value))
}

func (r *REPL) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: put <key> <value>")
		return
	}

	tx, err := r.env.Begin(true)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	if err := idxkv.Upsert(tx, r.coll, parseBytes(args[0]), parseBytes(args[1])); err != nil {
		tx.Abort()
		fmt.Printf("error: %v\n", err)

		return
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: del <key>")
		return
	}

	tx, err := r.env.Begin(true)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	if err := idxkv.Delete(tx, r.coll, parseBytes(args[0])); err != nil {
		tx.Abort()
		fmt.Printf("error: %v\n", err)

		return
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdScan(args []string) {
	limit := 20

	if len(args) >= 1 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}

	tx, err := r.env.Begin(false)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer tx.Abort()

	n := 0

	err = idxkv.ScanRange(tx, r.coll, nil, nil, func(key, value []byte) (bool, error) {
		n++
		fmt.Printf("%3d. %s => %s\n", n, formatBytes(key), formatBytes(value))

		return limit <= 0 || n < limit, nil
	})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	if n == 0 {
		fmt.Println("(empty)")
	}
}

func (r *REPL) cmdPrefix(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: prefix <prefix> [limit]")
		return
	}

	limit := 20

	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			limit = n
		}
	}

	tx, err := r.env.Begin(false)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer tx.Abort()

	n := 0

	err = idxkv.ScanPrefix(tx, r.coll, parseBytes(args[0]), func(key, value []byte) (bool, error) {
		n++
		fmt.Printf("%3d. %s => %s\n", n, formatBytes(key), formatBytes(value))

		return limit <= 0 || n < limit, nil
	})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	if n == 0 {
		fmt.Println("(no matches)")
	}
}

func (r *REPL) cmdIndex(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: index <name> <key>")
		return
	}

	tx, err := r.env.Begin(false)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer tx.Abort()

	n := 0

	err = idxkv.IndexSeek(tx, r.coll, args[0], parseBytes(args[1]), func(mainKey []byte) (bool, error) {
		n++
		fmt.Printf("%3d. %s\n", n, formatBytes(mainKey))

		return true, nil
	})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	if n == 0 {
		fmt.Println("(no matches)")
	}
}

func (r *REPL) cmdStat() {
	stat, err := r.env.Stat()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("data size:   %d bytes\n", stat.DataSize)
	fmt.Printf("free pages:  %d\n", stat.FreePageCount)
	fmt.Printf("tx count:    %d\n", stat.TxCount)
}

func (r *REPL) cmdVerify(args []string) {
	var opts []idxkv.VerifyOption

	for _, a := range args {
		if a == "--full" {
			opts = append(opts, idxkv.WithFullReport())
		}
	}

	tx, err := r.env.Begin(false)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer tx.Abort()

	report, err := idxkv.Verify(tx, r.coll, opts...)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("records=%d missing=%d orphan=%d unique_violations=%d counter_mismatch=%v\n",
		report.RecordCount, report.MissingIndexEntries, report.OrphanIndexEntries,
		report.UniqueViolations, report.CounterMismatch)

	for _, m := range report.Mismatches {
		fmt.Printf("  %-16s index=%s main_key=%s index_key=%s\n",
			m.Kind, m.Index, formatBytes(m.MainKey), formatBytes(m.IndexKey))
	}
}
