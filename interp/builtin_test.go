// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/uky007/rush/history"
	"github.com/uky007/rush/state"
)

// newTestRunner builds a Runner with stdout/stderr redirected to pipes the
// test can read back, mirroring how the real cmd/rush wires os.Stdin/out/err.
// Its history store points at a scratch file so tests never touch the real
// user's ~/.rush_history.
func newTestRunner(t *testing.T) (r *Runner, stdout, stderr func() string) {
	t.Helper()
	sh := state.New()
	sh.History = history.New(filepath.Join(t.TempDir(), "history"))
	r = New(sh, zap.NewNop())

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	r.Stdout, r.Stderr = outW, errW

	readAll := func(r *os.File, w *os.File) func() string {
		return func() string {
			w.Close()
			data, _ := io.ReadAll(r)
			return string(data)
		}
	}
	return r, readAll(outR, outW), readAll(errR, errW)
}

func TestBuiltinEcho(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"Plain", []string{"echo", "a", "b"}, "a b\n"},
		{"NoNewline", []string{"echo", "-n", "a", "b"}, "a b"},
		{"Escapes", []string{"echo", "-e", "a\\tb"}, "a\tb\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, stdout, _ := newTestRunner(t)
			code := builtinEcho(r, tc.args)
			if code != 0 {
				t.Fatalf("builtinEcho exit = %d, want 0", code)
			}
			if got := stdout(); got != tc.want {
				t.Fatalf("stdout = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuiltinPwdAndCd(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	dir := t.TempDir()
	if code := builtinCd(r, []string{"cd", dir}); code != 0 {
		t.Fatalf("builtinCd exit = %d, want 0", code)
	}
	if code := builtinPwd(r, []string{"pwd"}); code != 0 {
		t.Fatalf("builtinPwd exit = %d, want 0", code)
	}
	wantDir, _ := filepath.EvalSymlinks(dir)
	got := strings.TrimSuffix(stdout(), "\n")
	gotDir, _ := filepath.EvalSymlinks(got)
	if gotDir != wantDir {
		t.Fatalf("pwd printed %q, want %q", got, dir)
	}
}

func TestBuiltinExportListsExported(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	builtinExport(r, []string{"export", "FOO=bar"})
	out := stdout()
	if !strings.Contains(out, "export FOO=bar\n") {
		t.Fatalf("export listing = %q, want it to contain %q", out, "export FOO=bar")
	}
}

func TestBuiltinUnset(t *testing.T) {
	r, _, _ := newTestRunner(t)
	builtinExport(r, []string{"export", "FOO=bar"})
	builtinUnset(r, []string{"unset", "FOO"})
	if r.Sh.Get("FOO").IsSet() {
		t.Fatal("FOO should be unset")
	}
}

func TestBuiltinExitSetsExitRequested(t *testing.T) {
	r, _, _ := newTestRunner(t)
	code := builtinExit(r, []string{"exit", "42"})
	if code != 42 || !r.Sh.ExitRequested || r.Sh.ExitCode != 42 {
		t.Fatalf("exit 42: code=%d ExitRequested=%v ExitCode=%d", code, r.Sh.ExitRequested, r.Sh.ExitCode)
	}
}

func TestBuiltinAliasSetAndExpand(t *testing.T) {
	r, _, _ := newTestRunner(t)
	builtinAlias(r, []string{"alias", "ll=ls -la"})
	if r.Sh.Aliases["ll"] != "ls -la" {
		t.Fatalf("alias ll = %q, want %q", r.Sh.Aliases["ll"], "ls -la")
	}
	got := r.resolveAlias([]string{"ll", "/tmp"})
	want := []string{"ls", "-la", "/tmp"}
	if len(got) != len(want) {
		t.Fatalf("resolveAlias = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("resolveAlias = %q, want %q", got, want)
		}
	}
}

func TestBuiltinUnalias(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.Sh.Aliases["ll"] = "ls -la"
	builtinUnalias(r, []string{"unalias", "ll"})
	if _, ok := r.Sh.Aliases["ll"]; ok {
		t.Fatal("unalias should have removed ll")
	}
}

func TestBuiltinUnaliasAll(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.Sh.Aliases["ll"] = "ls -la"
	r.Sh.Aliases["greet"] = "echo hi"
	builtinUnalias(r, []string{"unalias", "-a"})
	if len(r.Sh.Aliases) != 0 {
		t.Fatalf("unalias -a should have cleared all aliases, got %v", r.Sh.Aliases)
	}
}

func TestBuiltinSetErrExitAndXTrace(t *testing.T) {
	r, _, _ := newTestRunner(t)
	builtinSet(r, []string{"set", "-e"})
	if !r.Sh.ErrExit {
		t.Fatal("set -e should enable ErrExit")
	}
	builtinSet(r, []string{"set", "+e"})
	if r.Sh.ErrExit {
		t.Fatal("set +e should disable ErrExit")
	}
	builtinSet(r, []string{"set", "-x"})
	if !r.Sh.XTrace {
		t.Fatal("set -x should enable XTrace")
	}
}

func TestBuiltinReadSplitsFields(t *testing.T) {
	r, _, _ := newTestRunner(t)
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	r.Stdin = pr
	go func() {
		pw.WriteString("alpha beta gamma extra\n")
		pw.Close()
	}()
	code := builtinRead(r, []string{"read", "a", "b", "rest"})
	if code != 0 {
		t.Fatalf("builtinRead exit = %d, want 0", code)
	}
	if got := r.Sh.Get("a").Value; got != "alpha" {
		t.Fatalf("a = %q, want alpha", got)
	}
	if got := r.Sh.Get("b").Value; got != "beta" {
		t.Fatalf("b = %q, want beta", got)
	}
	if got := r.Sh.Get("rest").Value; got != "gamma extra" {
		t.Fatalf("rest = %q, want %q", got, "gamma extra")
	}
}

func TestBuiltinHistoryLists(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	r.Sh.History.Add("first")
	r.Sh.History.Add("second")
	code := builtinHistory(r, []string{"history"})
	if code != 0 {
		t.Fatalf("builtinHistory exit = %d, want 0", code)
	}
	out := stdout()
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("history output = %q, want it to contain both entries", out)
	}
}

func TestBuiltinHistoryClear(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.Sh.History.Add("first")
	r.Sh.History.Add("second")
	if code := builtinHistory(r, []string{"history", "-c"}); code != 0 {
		t.Fatalf("history -c exit = %d, want 0", code)
	}
	if got := r.Sh.History.Entries(); len(got) != 0 {
		t.Fatalf("history -c should have cleared entries, got %v", got)
	}
}

func TestBuiltinReadPromptDoesNotConsumeAName(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	r.Stdin = pr
	go func() {
		pw.WriteString("value\n")
		pw.Close()
	}()
	code := builtinRead(r, []string{"read", "-p", "Enter: ", "a"})
	if code != 0 {
		t.Fatalf("builtinRead exit = %d, want 0", code)
	}
	if got := stdout(); got != "Enter: " {
		t.Fatalf("stdout = %q, want the prompt to have been printed", got)
	}
	if got := r.Sh.Get("a").Value; got != "value" {
		t.Fatalf("a = %q, want value", got)
	}
}

func TestBuiltinReturnOutsideSourceIsRejected(t *testing.T) {
	r, _, _ := newTestRunner(t)
	code := builtinReturn(r, []string{"return", "3"})
	if code == 0 {
		t.Fatal("return outside a sourced script should not succeed silently")
	}
	if r.Sh.ReturnRequested {
		t.Fatal("return outside a sourced script must not arm ReturnRequested")
	}
}

func TestBuiltinSourceStopsEarlyOnReturn(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "script.rush")
	script := "echo one\nreturn 5\necho unreachable\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	code := builtinSource(r, []string{"source", path})
	if code != 5 {
		t.Fatalf("source exit = %d, want 5", code)
	}
	if got := stdout(); got != "one\n" {
		t.Fatalf("output = %q, want only the line before return", got)
	}
	if r.Sh.ReturnRequested {
		t.Fatal("builtinSource should have consumed ReturnRequested")
	}
}

func TestBuiltinTypeReportsBuiltin(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	code := builtinType(r, []string{"type", "cd"})
	if code != 0 {
		t.Fatalf("builtinType exit = %d, want 0", code)
	}
	if got := stdout(); !strings.Contains(got, "shell builtin") {
		t.Fatalf("type cd = %q, want it to mention a shell builtin", got)
	}
}

func TestBuiltinHashListsAndRefreshes(t *testing.T) {
	r, _, _ := newTestRunner(t)
	if code := builtinHash(r, []string{"hash", "-r"}); code != 0 {
		t.Fatalf("builtinHash -r exit = %d, want 0", code)
	}
}
