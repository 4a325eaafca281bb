// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package state owns the shell's mutable context: variables, aliases,
// working directory, job table and PATH cache (spec.md §3 "Shell state").
package state

import (
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"time"

	"github.com/uky007/rush/expand"
	"github.com/uky007/rush/history"
	"github.com/uky007/rush/job"
	"github.com/uky007/rush/pathcache"
	"github.com/uky007/rush/syntax"
)

// Shell is the single owning context threaded through the lexer/parser's
// expansion callbacks, the executor and the builtins. There is exactly one
// per process; rush has no subshell/function scoping (an explicit
// Non-goal), so there is no parent-chain like a typical Environ.
type Shell struct {
	Vars     map[string]expand.Variable
	Aliases  map[string]string
	LastExit  int
	OldPWD    string
	PWD       string
	PID       int
	LastBgPID int
	Arg0      string
	Started   time.Time

	Jobs    *job.Table
	Paths   *pathcache.Cache
	History *history.Store

	ExitRequested bool
	ExitCode      int

	// ReturnRequested/ReturnCode back the `return` builtin; SourceDepth
	// counts nested `source`/`.` invocations so `return` at top level (not
	// inside a sourced script) can be rejected rather than silently
	// stalling the rest of the session.
	ReturnRequested bool
	ReturnCode      int
	SourceDepth     int

	// ErrExit and XTrace back `set -e`/`set -x` (SPEC_FULL.md §3.6).
	ErrExit bool
	XTrace  bool

	rng *rand.Rand
}

// New creates a Shell seeded from the current process's environment, PID
// and working directory.
func New() *Shell {
	sh := &Shell{
		Vars:    make(map[string]expand.Variable),
		Aliases: make(map[string]string),
		PID:     os.Getpid(),
		Arg0:    "rush",
		Started: time.Now(),
		Jobs:    job.NewTable(),
		History: history.New(history.DefaultPath()),
		rng:     rand.New(rand.NewPCG(uint64(os.Getpid()), uint64(time.Now().UnixNano()))),
	}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				sh.Vars[kv[:i]] = expand.Variable{Set: true, Exported: true, Value: kv[i+1:]}
				break
			}
		}
	}
	if wd, err := os.Getwd(); err == nil {
		sh.PWD = wd
		sh.Vars["PWD"] = expand.Variable{Set: true, Exported: true, Value: wd}
	}
	sh.Paths = pathcache.New(sh.Vars["PATH"].Value)
	return sh
}

// Get implements expand.Environ.
func (sh *Shell) Get(name string) expand.Variable {
	return sh.Vars[name]
}

// Each implements expand.Environ.
func (sh *Shell) Each(fn func(name string, v expand.Variable) bool) {
	names := make([]string, 0, len(sh.Vars))
	for name := range sh.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !fn(name, sh.Vars[name]) {
			return
		}
	}
}

// Set implements expand.WriteEnviron. Assigning PATH refreshes the path
// cache's signature; assigning PWD has no side effect here (cd is the one
// place PWD/OldPWD actually move, see Chdir).
func (sh *Shell) Set(name string, v expand.Variable) error {
	sh.Vars[name] = v
	if name == "PATH" {
		sh.Paths.SetPath(v.Value)
	}
	return nil
}

// Export marks name as exported, creating it unset-but-exported if it did
// not exist yet (matching `export NAME` with no value).
func (sh *Shell) Export(name string) {
	v := sh.Vars[name]
	v.Exported = true
	sh.Vars[name] = v
}

// Unexport clears the export flag without touching the value.
func (sh *Shell) Unexport(name string) {
	v, ok := sh.Vars[name]
	if !ok {
		return
	}
	v.Exported = false
	sh.Vars[name] = v
}

// Unset removes name entirely.
func (sh *Shell) Unset(name string) {
	delete(sh.Vars, name)
}

// Chdir updates PWD/OldPWD together, the only place those two variables
// change (spec.md §4.4's `cd` builtin).
func (sh *Shell) Chdir(dir string) error {
	if err := os.Chdir(dir); err != nil {
		return err
	}
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	sh.OldPWD = sh.PWD
	sh.PWD = wd
	sh.Vars["OLDPWD"] = expand.Variable{Set: true, Exported: true, Value: sh.OldPWD}
	sh.Vars["PWD"] = expand.Variable{Set: true, Exported: true, Value: sh.PWD}
	return nil
}

// Random draws the next $RANDOM value from a process-seeded source, never
// the deprecated global math/rand lock (spec.md §3.1 note).
func (sh *Shell) Random() uint32 {
	return sh.rng.Uint32() % 32768
}

// Seconds returns $SECONDS: elapsed wall time since the shell started.
func (sh *Shell) Seconds() int64 {
	return int64(time.Since(sh.Started).Seconds())
}

// NewExpandConfig builds an expand.Config snapshotting this shell's current
// exit status and background PID, wired to subshell for running $(...)/`...`
// bodies. A fresh Config is built per command so $? always reflects the
// previous command's exit status (spec.md §4.3).
func (sh *Shell) NewExpandConfig(subshell func(tree *syntax.CommandTree) (string, error)) *expand.Config {
	return &expand.Config{
		Env:       sh,
		LastExit:  sh.LastExit,
		PID:       sh.PID,
		LastBgPID: sh.LastBgPID,
		Arg0:      sh.Arg0,
		Subshell:  subshell,
		Random:    func() uint32 { return sh.Random() },
		Seconds:   sh.Seconds,
	}
}

// String implements a debug dump of the current variable table, used by
// `set` with no arguments (spec.md §4.4).
func (sh *Shell) String() string {
	var names []string
	for n := range sh.Vars {
		names = append(names, n)
	}
	sort.Strings(names)
	out := ""
	for _, n := range names {
		out += fmt.Sprintf("%s=%s\n", n, sh.Vars[n].Value)
	}
	return out
}
