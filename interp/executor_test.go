// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"os"
	"strings"
	"testing"

	"github.com/uky007/rush/syntax"
)

func runLine(t *testing.T, r *Runner, src string) {
	t.Helper()
	tree, err := syntax.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	if err := r.Run(tree); err != nil {
		t.Fatalf("Run(%q): %v", src, err)
	}
}

func TestRunSequence(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	runLine(t, r, "echo a; echo b\n")
	if got, want := stdout(), "a\nb\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRunAndIfShortCircuits(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	runLine(t, r, "false && echo unreachable\n")
	if got := stdout(); got != "" {
		t.Fatalf("output = %q, want empty (short-circuited)", got)
	}
	if r.Sh.LastExit != 1 {
		t.Fatalf("$? = %d, want 1", r.Sh.LastExit)
	}
}

func TestRunOrIfRunsOnFailure(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	runLine(t, r, "false || echo fallback\n")
	if got, want := stdout(), "fallback\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if r.Sh.LastExit != 0 {
		t.Fatalf("$? = %d, want 0", r.Sh.LastExit)
	}
}

func TestRunInlineAssignmentScopesToCommand(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	runLine(t, r, "FOO=bar echo $FOO\n")
	if got, want := stdout(), "bar\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if r.Sh.Get("FOO").IsSet() {
		t.Fatal("inline assignment must not leak into shell state")
	}
}

func TestRunAssignmentPersistsWithoutCommand(t *testing.T) {
	r, _, _ := newTestRunner(t)
	runLine(t, r, "FOO=bar\n")
	if got := r.Sh.Get("FOO").Value; got != "bar" {
		t.Fatalf("FOO = %q, want %q", got, "bar")
	}
}

func TestRunPipelineExternal(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	runLine(t, r, "echo hello | wc -c\n")
	if got := strings.TrimSpace(stdout()); got != "6" {
		t.Fatalf("wc -c output = %q, want %q", got, "6")
	}
	if r.Sh.LastExit != 0 {
		t.Fatalf("$? = %d, want 0", r.Sh.LastExit)
	}
}

func TestRunRedirectToFile(t *testing.T) {
	r, _, _ := newTestRunner(t)
	dir := t.TempDir()
	path := dir + "/out.txt"
	runLine(t, r, "echo redirected > "+path+"\n")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "redirected\n"; got != want {
		t.Fatalf("file contents = %q, want %q", got, want)
	}
}

func TestRunRedirectOnBuiltinRestoresStdout(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	dir := t.TempDir()
	path := dir + "/pwd.txt"
	runLine(t, r, "pwd > "+path+"\n")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("pwd > file should have written the directory to the file")
	}
	// a later command without a redirect must go back to the runner's
	// normal stdout, proving the swap in applyStageRedirects was restored.
	runLine(t, r, "echo back\n")
	if got, want := stdout(), "back\n"; got != want {
		t.Fatalf("stdout after redirect = %q, want %q", got, want)
	}
}

func TestRunRedirectFromFileOnBuiltin(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	dir := t.TempDir()
	path := dir + "/in.txt"
	if err := os.WriteFile(path, []byte("alpha beta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runLine(t, r, "read a b < "+path+"\n")
	if got := r.Sh.Get("a").Value; got != "alpha" {
		t.Fatalf("a = %q, want alpha", got)
	}
	if got := r.Sh.Get("b").Value; got != "beta" {
		t.Fatalf("b = %q, want beta", got)
	}
	if stdout() != "" {
		t.Fatalf("read should not have written to stdout")
	}
}

func TestRunBareAssignmentAppliesWithoutSpawning(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	runLine(t, r, "x=1; echo ${x:-default} ${y:-default}\n")
	if got := r.Sh.Get("x").Value; got != "1" {
		t.Fatalf("x = %q, want 1", got)
	}
	if got, want := stdout(), "1 default\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if r.Sh.LastExit != 0 {
		t.Fatalf("$? after bare assignment sequence = %d, want 0", r.Sh.LastExit)
	}
}

func TestAliasExpansionInPipeline(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	r.Sh.Aliases["greet"] = "echo hi"
	runLine(t, r, "greet\n")
	if got, want := stdout(), "hi\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestCommandBuiltinForcesExternal(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.Sh.Aliases["true"] = "false"
	status := r.runExternal([]string{"true"})
	if status != 0 {
		t.Fatalf("command true exit = %d, want 0 (alias should not apply)", status)
	}
}
