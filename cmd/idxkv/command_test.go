package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/calvinalkan/idxkv/pkg/idxkv"
)

// seedDB opens path with the CLI's built-in registry, inserts a few
// records directly via the core package, and closes the environment so
// later commands reopen a clean, committed file.
func seedDB(t *testing.T, path string, records map[string]string) {
	t.Helper()

	cfg := DefaultConfig()

	env, err := openEnv(path, cfg, false)
	if err != nil {
		t.Fatalf("openEnv: %v", err)
	}
	defer env.Close()

	tx, err := env.Begin(true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	c, err := idxkv.OpenCollectionTx(tx, "widgets")
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}

	for k, v := range records {
		if err := idxkv.Insert(tx, c, []byte(k), []byte(v)); err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func runCommand(t *testing.T, cmd *Command, args []string) (stdout, stderr string, code int) {
	t.Helper()

	var out, errOut bytes.Buffer

	code = cmd.Run(context.Background(), NewIO(&out, &errOut), args)

	return out.String(), errOut.String(), code
}

func Test_GetCommand_Returns_A_Stored_Record(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/test.db"
	seedDB(t, path, map[string]string{"sku-1": "hammer"})

	cfg := DefaultConfig()
	out, _, code := runCommand(t, newGetCommand(&cfg), []string{path, "widgets", "sku-1"})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if want := `"hammer"` + "\n"; out != want {
		t.Fatalf("stdout = %q, want %q", out, want)
	}
}

func Test_GetCommand_Missing_Key_Fails_With_NonZero_Exit(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/test.db"
	seedDB(t, path, map[string]string{"sku-1": "hammer"})

	cfg := DefaultConfig()
	_, errOut, code := runCommand(t, newGetCommand(&cfg), []string{path, "widgets", "sku-missing"})

	if code == 0 {
		t.Fatal("expected a non-zero exit code for a missing key")
	}

	if !strings.Contains(errOut, "error:") {
		t.Fatalf("stderr = %q, want it to mention the error", errOut)
	}
}

func Test_ScanCommand_Lists_Records_In_Key_Order(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/test.db"
	seedDB(t, path, map[string]string{"b": "2", "a": "1", "c": "3"})

	cfg := DefaultConfig()
	out, _, code := runCommand(t, newScanCommand(&cfg), []string{path, "widgets"})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0, stderr unseen here", code)
	}

	indexA := strings.Index(out, `"a"`)
	indexB := strings.Index(out, `"b"`)
	indexC := strings.Index(out, `"c"`)

	if indexA == -1 || indexB == -1 || indexC == -1 {
		t.Fatalf("scan output missing a record: %q", out)
	}

	if !(indexA < indexB && indexB < indexC) {
		t.Fatalf("scan output not in key order: %q", out)
	}
}

func Test_AddIndexCommand_Then_Verify_Reports_Clean(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/test.db"
	seedDB(t, path, map[string]string{"sku-1": "hammer", "sku-2": "wrench"})

	cfg := DefaultConfig()

	out, _, code := runCommand(t, newAddIndexCommand(&cfg), []string{path, "widgets", "by_value", "identity"})
	if code != 0 {
		t.Fatalf("add-index exit code = %d, output=%q", code, out)
	}

	verifyOut, _, code := runCommand(t, newVerifyCommand(&cfg), []string{path, "widgets"})
	if code != 0 {
		t.Fatalf("verify exit code = %d, want 0, output=%q", code, verifyOut)
	}

	if !strings.Contains(verifyOut, "missing entries:  0") {
		t.Fatalf("verify output = %q, want zero missing entries after add-index's default populate", verifyOut)
	}
}

func Test_AddIndexCommand_NoPopulate_Then_Verify_Reports_Missing(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/test.db"
	seedDB(t, path, map[string]string{"sku-1": "hammer"})

	cfg := DefaultConfig()

	fs := newAddIndexCommand(&cfg)

	_, _, code := runCommand(t, fs, []string{path, "widgets", "by_value", "identity", "--no-populate"})
	if code != 0 {
		t.Fatalf("add-index exit code = %d", code)
	}

	verifyOut, _, code := runCommand(t, newVerifyCommand(&cfg), []string{path, "widgets", "--full"})
	if code == 0 {
		t.Fatal("expected verify to fail after an unpopulated index leaves a missing entry")
	}

	if !strings.Contains(verifyOut, "missing entries:  1") {
		t.Fatalf("verify output = %q, want one missing entry", verifyOut)
	}
}

func Test_StatCommand_Reports_A_Data_File(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/test.db"
	seedDB(t, path, map[string]string{"k": "v"})

	cfg := DefaultConfig()
	out, _, code := runCommand(t, newStatCommand(&cfg), []string{path})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(out, "data size:") {
		t.Fatalf("stat output = %q, want a data size line", out)
	}
}

func Test_Command_PrintsHelp_On_DashDashHelp(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	out, _, code := runCommand(t, newScanCommand(&cfg), []string{"--help"})

	if code != 0 {
		t.Fatalf("--help exit code = %d, want 0", code)
	}

	if !strings.Contains(out, "Usage: idxkv scan") {
		t.Fatalf("help output = %q, want usage line", out)
	}
}
