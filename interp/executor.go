// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package interp is the executor and pipeline assembler: it walks a parsed
// CommandTree, expands each command's words, dispatches builtins in-process
// and assembles external pipelines via the spawn/job packages
// (spec.md §4.4/§4.5).
package interp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/uky007/rush/expand"
	"github.com/uky007/rush/state"
	"github.com/uky007/rush/syntax"
)

// maxAliasDepth guards against `alias ll=ll` style self-reference loops
// (spec.md §4.4's alias expansion note).
const maxAliasDepth = 16

// Runner ties a Shell's mutable state to the builtin catalogue and carries
// the file descriptors standard streams currently point at, so builtins
// and `command`-forced external lookups observe the same redirections as
// an external stage would.
type Runner struct {
	Sh *state.Shell

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	builtins map[string]builtinFunc
	log      *zap.Logger
}

type builtinFunc func(r *Runner, args []string) int

// New creates a Runner around sh, wired to the process's own stdio. log
// receives the `set -x` command trace and any ambient diagnostics; pass
// zap.NewNop() for a silent runner (e.g. command substitution).
func New(sh *state.Shell, log *zap.Logger) *Runner {
	r := &Runner{Sh: sh, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, log: log}
	r.builtins = builtinTable()
	return r
}

// trace emits a `set -x`-style "+ argv..." line when the shell's XTrace
// option is on (spec.md §4.4's `set -x`).
func (r *Runner) trace(args []string) {
	if !r.Sh.XTrace {
		return
	}
	r.log.Info("+ "+strings.Join(args, " "), zap.Strings("argv", args))
}

// Run executes a full parsed line: its &&/||/; sequence of pipelines,
// updating $? and the shell's ExitRequested flag as it goes
// (spec.md §4.4's and/or/sequence evaluation).
func (r *Runner) Run(tree *syntax.CommandTree) error {
	if tree == nil {
		return nil
	}
	for _, leaf := range tree.Leaves() {
		switch leaf.Op {
		case syntax.BinAndIf:
			if r.Sh.LastExit != 0 {
				continue
			}
		case syntax.BinOrIf:
			if r.Sh.LastExit == 0 {
				continue
			}
		}
		if err := r.runPipeline(leaf.Pipe); err != nil {
			return err
		}
		if r.Sh.ExitRequested || r.Sh.ReturnRequested {
			return nil
		}
		if r.Sh.ErrExit && r.Sh.LastExit != 0 && leaf.Op != syntax.BinOrIf {
			return nil
		}
	}
	return nil
}

// runSubshell runs tree for a $(...) / `...` command substitution,
// capturing its stdout and returning it with a trailing newline trimmed
// by the caller (expand.Config.Subshell, see NewExpandConfig).
func (r *Runner) runSubshell(tree *syntax.CommandTree) (string, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", err
	}
	sub := &Runner{Sh: r.Sh, Stdin: r.Stdin, Stdout: pw, Stderr: r.Stderr, builtins: r.builtins, log: r.log}

	done := make(chan struct{})
	var out []byte
	var readErr error
	go func() {
		out, readErr = io.ReadAll(pr)
		close(done)
	}()

	runErr := sub.Run(tree)
	pw.Close()
	<-done
	pr.Close()
	if runErr != nil {
		return "", runErr
	}
	if readErr != nil {
		return "", readErr
	}
	return string(out), nil
}

// expandConfig builds the expand.Config used to expand one command's
// words, wired to this Runner's subshell execution.
func (r *Runner) expandConfig() *expand.Config {
	cfg := r.Sh.NewExpandConfig(r.runSubshell)
	cfg.GlobStar = true
	return cfg
}

// expandWords runs brace expansion then the full Fields pipeline over a
// command's argument words, in the order spec.md §4.3 requires.
func (r *Runner) expandWords(words []*syntax.Word) ([]string, error) {
	cfg := r.expandConfig()
	var braced []*syntax.Word
	for _, w := range words {
		braced = append(braced, expand.Braces(w)...)
	}
	return cfg.Fields(braced...)
}

// resolveAlias expands leading alias names in a command's first word,
// recursively, stopping at maxAliasDepth or once a name maps to itself
// (spec.md §4.4).
func (r *Runner) resolveAlias(args []string) []string {
	seen := make(map[string]bool)
	for depth := 0; depth < maxAliasDepth; depth++ {
		if len(args) == 0 {
			return args
		}
		repl, ok := r.Sh.Aliases[args[0]]
		if !ok || seen[args[0]] {
			return args
		}
		seen[args[0]] = true
		fields := strings.Fields(repl)
		args = append(fields, args[1:]...)
	}
	return args
}

// parseAndRun parses src as a full script (possibly several lines) and
// runs each parsed line in turn, used by the `source`/`.` builtin
// (spec.md §4.4).
func (r *Runner) parseAndRun(src string) error {
	rest := []byte(src)
	for len(strings.TrimSpace(string(rest))) > 0 {
		tree, err := syntax.Parse(rest)
		if err != nil {
			if syntax.NeedsMoreInput(err) {
				return fmt.Errorf("unexpected end of input")
			}
			return err
		}
		if err := syntax.ResolveCmdSubsts(tree); err != nil {
			return err
		}
		if err := r.Run(tree); err != nil {
			return err
		}
		if r.Sh.ExitRequested || r.Sh.ReturnRequested {
			return nil
		}
		rest = consumedRest(rest, tree)
		if len(rest) == 0 {
			break
		}
	}
	return nil
}

// consumedRest finds the byte offset just past tree's last leaf and
// returns the unconsumed remainder of src, so parseAndRun can step through
// a multi-line script one parsed line at a time.
func consumedRest(src []byte, tree *syntax.CommandTree) []byte {
	if tree == nil {
		if i := bytes.IndexByte(src, '\n'); i >= 0 {
			return src[i+1:]
		}
		return nil
	}
	end := tree.End().Offset
	for end < len(src) && src[end] != '\n' {
		end++
	}
	if end < len(src) {
		end++
	}
	if end >= len(src) {
		return nil
	}
	return src[end:]
}

func (r *Runner) errorf(format string, a ...interface{}) {
	fmt.Fprintf(r.Stderr, "rush: "+format+"\n", a...)
}
