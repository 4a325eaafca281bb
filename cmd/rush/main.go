// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// rush is an interactive POSIX-ish shell: see the interp, syntax and
// editor packages for the lexer/parser, executor and line editor.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/uky007/rush/editor"
	"github.com/uky007/rush/fileutil"
	"github.com/uky007/rush/interp"
	"github.com/uky007/rush/state"
	"github.com/uky007/rush/syntax"
)

var command = flag.String("c", "", "command to be executed")

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	log, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Sync()

	sh := state.New()
	r := interp.New(sh, log)

	switch {
	case *command != "":
		runSource(r, *command, "-c")
	case flag.NArg() > 0:
		for _, path := range flag.Args() {
			if err := runFile(r, path); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			if sh.ExitRequested {
				break
			}
		}
	case term.IsTerminal(int(os.Stdin.Fd())):
		loadRC(r)
		runInteractive(r)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		runSource(r, string(data), "stdin")
	}

	if sh.ExitRequested {
		return sh.ExitCode
	}
	return sh.LastExit
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// runFile runs a script file, stripping a leading shebang line first since
// the lexer has no comment syntax of its own (spec.md §4.1's simplified
// token set carries no `#` token). fileutil.HasShebang recognises the
// common `#!/bin/sh`-style forms; the generic "#!" prefix check covers a
// rush script naming its own interpreter, e.g. `#!/usr/bin/env rush`.
func runFile(r *interp.Runner, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	src := string(data)
	if fileutil.HasShebang(data) || strings.HasPrefix(src, "#!") {
		if i := strings.IndexByte(src, '\n'); i >= 0 {
			src = src[i+1:]
		} else {
			src = ""
		}
	}
	runSource(r, src, filepath.Base(path))
	return nil
}

func runSource(r *interp.Runner, src, name string) {
	tree, err := syntax.Parse([]byte(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rush: %s: %v\n", name, err)
		return
	}
	if err := syntax.ResolveCmdSubsts(tree); err != nil {
		fmt.Fprintf(os.Stderr, "rush: %s: %v\n", name, err)
		return
	}
	r.Run(tree)
}

// loadRC reads ~/.rushrc line at a time, skipping `#`-prefixed comment
// lines and blank lines, per spec.md §6.
func loadRC(r *interp.Runner) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	f, err := os.Open(filepath.Join(home, ".rushrc"))
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		runSource(r, line, ".rushrc")
	}
}

func runInteractive(r *interp.Runner) {
	ed := editor.New(os.Stdin, os.Stdout, r.Sh.History, r.Sh.Paths)
	for {
		r.Sh.Jobs.Reap()
		line, err := ed.ReadLine(prompt(r))
		if err != nil {
			fmt.Fprintln(os.Stdout)
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		runSource(r, line, "")
		if r.Sh.ExitRequested {
			return
		}
	}
}

func prompt(r *interp.Runner) string {
	base := filepath.Base(r.Sh.PWD)
	if r.Sh.LastExit != 0 {
		return fmt.Sprintf("%s [%d]$ ", base, r.Sh.LastExit)
	}
	return base + "$ "
}
