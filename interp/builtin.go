// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/uky007/rush/expand"
	"github.com/uky007/rush/job"
)

// builtinTable returns the dispatch map from command name to in-process
// implementation, spec.md §4.4's builtin catalogue plus the `hash` and
// `set -e/-x` additions.
func builtinTable() map[string]builtinFunc {
	return map[string]builtinFunc{
		":":       builtinTrue,
		"true":    builtinTrue,
		"false":   builtinFalse,
		"exit":    builtinExit,
		"cd":      builtinCd,
		"pwd":     builtinPwd,
		"echo":    builtinEcho,
		"printf":  builtinPrintf,
		"export":  builtinExport,
		"unset":   builtinUnset,
		"source":  builtinSource,
		".":       builtinSource,
		"return":  builtinReturn,
		"alias":   builtinAlias,
		"unalias": builtinUnalias,
		"history": builtinHistory,
		"read":    builtinRead,
		"exec":    builtinExec,
		"wait":    builtinWait,
		"type":    builtinType,
		"command": builtinCommand,
		"builtin": builtinBuiltin,
		"jobs":    builtinJobs,
		"bg":      builtinBg,
		"fg":      builtinFg,
		"hash":    builtinHash,
		"set":     builtinSet,
		"test":    builtinTest,
		"[":       builtinBracket,
	}
}

func builtinTrue(r *Runner, args []string) int  { return 0 }
func builtinFalse(r *Runner, args []string) int { return 1 }

func builtinExit(r *Runner, args []string) int {
	code := r.Sh.LastExit
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			r.errorf("exit: %s: numeric argument required", args[1])
			code = 2
		} else {
			code = n
		}
	}
	r.Sh.ExitRequested = true
	r.Sh.ExitCode = code & 0xff
	return r.Sh.ExitCode
}

func builtinCd(r *Runner, args []string) int {
	dir := ""
	switch {
	case len(args) < 2:
		dir = r.Sh.Get("HOME").Value
	case args[1] == "-":
		dir = r.Sh.OldPWD
		fmt.Fprintln(r.Stdout, dir)
	default:
		dir = args[1]
	}
	dir = expandTildePath(dir)
	if dir == "" {
		r.errorf("cd: HOME not set")
		return 1
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Sh.PWD, dir)
	}
	if err := r.Sh.Chdir(dir); err != nil {
		r.errorf("cd: %v", err)
		return 1
	}
	return 0
}

func expandTildePath(s string) string {
	if s == "~" {
		if u, err := user.Current(); err == nil {
			return u.HomeDir
		}
		return s
	}
	if strings.HasPrefix(s, "~/") {
		if u, err := user.Current(); err == nil {
			return filepath.Join(u.HomeDir, s[2:])
		}
	}
	return s
}

func builtinPwd(r *Runner, args []string) int {
	fmt.Fprintln(r.Stdout, r.Sh.PWD)
	return 0
}

func builtinEcho(r *Runner, args []string) int {
	words := args[1:]
	noNewline := false
	interpEscapes := false
	for len(words) > 0 && len(words[0]) > 1 && words[0][0] == '-' {
		flag := words[0]
		ok := true
		for _, c := range flag[1:] {
			switch c {
			case 'n':
				noNewline = true
			case 'e':
				interpEscapes = true
			case 'E':
				interpEscapes = false
			default:
				ok = false
			}
		}
		if !ok {
			break
		}
		words = words[1:]
	}
	out := strings.Join(words, " ")
	if interpEscapes {
		out = expandEchoEscapes(out)
	}
	fmt.Fprint(r.Stdout, out)
	if !noNewline {
		fmt.Fprint(r.Stdout, "\n")
	}
	return 0
}

func expandEchoEscapes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func builtinPrintf(r *Runner, args []string) int {
	if len(args) < 2 {
		r.errorf("printf: usage: printf format [arguments]")
		return 2
	}
	format := expandEchoEscapes(args[1])
	rest := make([]interface{}, 0, len(args)-2)
	for _, a := range args[2:] {
		rest = append(rest, a)
	}
	fmt.Fprintf(r.Stdout, format, rest...)
	return 0
}

func builtinExport(r *Runner, args []string) int {
	if len(args) == 1 {
		var names []string
		r.Sh.Each(func(name string, v expand.Variable) bool {
			if v.Exported {
				names = append(names, name)
			}
			return true
		})
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(r.Stdout, "export %s=%s\n", n, r.Sh.Get(n).Value)
		}
		return 0
	}
	for _, arg := range args[1:] {
		if i := strings.IndexByte(arg, '='); i >= 0 {
			name, val := arg[:i], arg[i+1:]
			r.Sh.Set(name, expand.Variable{Set: true, Exported: true, Value: val})
		} else {
			r.Sh.Export(arg)
		}
	}
	return 0
}

func builtinUnset(r *Runner, args []string) int {
	for _, name := range args[1:] {
		r.Sh.Unset(name)
	}
	return 0
}

func builtinSource(r *Runner, args []string) int {
	if len(args) < 2 {
		r.errorf("%s: filename argument required", args[0])
		return 2
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		r.errorf("%s: %v", args[0], err)
		return 1
	}
	r.Sh.SourceDepth++
	err = r.parseAndRun(string(data))
	r.Sh.SourceDepth--
	if err != nil {
		r.errorf("%s: %v", args[0], err)
		return 1
	}
	status := r.Sh.LastExit
	if r.Sh.ReturnRequested {
		status = r.Sh.ReturnCode
		r.Sh.ReturnRequested = false
	}
	return status
}

// builtinReturn ends the current `source`/`.` script early with a given
// exit status, spec.md §4.4's `return [N]`. Outside a sourced script
// there is nowhere to return to, so it's rejected rather than left to
// silently cut off the rest of the interactive session.
func builtinReturn(r *Runner, args []string) int {
	if r.Sh.SourceDepth == 0 {
		r.errorf("return: can only be used in a sourced script")
		return 1
	}
	code := r.Sh.LastExit
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			r.errorf("return: %s: numeric argument required", args[1])
			code = 2
		} else {
			code = n
		}
	}
	code &= 0xff
	r.Sh.ReturnRequested = true
	r.Sh.ReturnCode = code
	return code
}

func builtinAlias(r *Runner, args []string) int {
	if len(args) == 1 {
		var names []string
		for n := range r.Sh.Aliases {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(r.Stdout, "alias %s='%s'\n", n, r.Sh.Aliases[n])
		}
		return 0
	}
	status := 0
	for _, arg := range args[1:] {
		i := strings.IndexByte(arg, '=')
		if i < 0 {
			val, ok := r.Sh.Aliases[arg]
			if !ok {
				r.errorf("alias: %s: not found", arg)
				status = 1
				continue
			}
			fmt.Fprintf(r.Stdout, "alias %s='%s'\n", arg, val)
			continue
		}
		r.Sh.Aliases[arg[:i]] = arg[i+1:]
	}
	return status
}

func builtinUnalias(r *Runner, args []string) int {
	for _, name := range args[1:] {
		if name == "-a" {
			for n := range r.Sh.Aliases {
				delete(r.Sh.Aliases, n)
			}
			continue
		}
		delete(r.Sh.Aliases, name)
	}
	return 0
}

func builtinHistory(r *Runner, args []string) int {
	if len(args) > 1 && args[1] == "-c" {
		r.Sh.History.Clear()
		return 0
	}
	entries := r.Sh.History.Entries()
	n := len(entries)
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil && v < n {
			entries = entries[n-v:]
		}
	}
	base := len(r.Sh.History.Entries()) - len(entries)
	for i, line := range entries {
		fmt.Fprintf(r.Stdout, "%5d  %s\n", base+i+1, line)
	}
	return 0
}

func builtinRead(r *Runner, args []string) int {
	rest := args[1:]
	if len(rest) >= 2 && rest[0] == "-p" {
		fmt.Fprint(r.Stdout, rest[1])
		rest = rest[2:]
	}
	if len(rest) == 0 {
		r.errorf("read: usage: read [-p prompt] name [name ...]")
		return 2
	}
	sc := bufio.NewReader(r.Stdin)
	line, err := sc.ReadString('\n')
	if err != nil && line == "" {
		return 1
	}
	line = strings.TrimRight(line, "\n")
	fields := strings.Fields(line)
	names := rest
	for i, name := range names {
		val := ""
		if i < len(fields) {
			if i == len(names)-1 {
				val = strings.Join(fields[i:], " ")
			} else {
				val = fields[i]
			}
		}
		r.Sh.Set(name, expand.Variable{Set: true, Value: val})
	}
	return 0
}

func builtinExec(r *Runner, args []string) int {
	if len(args) < 2 {
		return 0
	}
	st := &stage{args: args[1:], assigns: map[string]string{}}
	prog, argv, envp := r.resolveExec(st)
	err := syscall.Exec(prog, argv, envp)
	r.errorf("exec: %s: %v", args[1], err)
	return 126
}

func builtinWait(r *Runner, args []string) int {
	status := 0
	for _, j := range r.Sh.Jobs.List() {
		status = r.Sh.Jobs.WaitForeground(j)
		r.Sh.Jobs.Remove(j.ID)
	}
	return status
}

func builtinType(r *Runner, args []string) int {
	status := 0
	for _, name := range args[1:] {
		switch {
		case r.Sh.Aliases[name] != "":
			fmt.Fprintf(r.Stdout, "%s is aliased to `%s'\n", name, r.Sh.Aliases[name])
		case isBuiltinName(r, name):
			fmt.Fprintf(r.Stdout, "%s is a shell builtin\n", name)
		default:
			if path, err := exec.LookPath(name); err == nil {
				fmt.Fprintf(r.Stdout, "%s is %s\n", name, path)
			} else {
				r.errorf("type: %s: not found", name)
				status = 1
			}
		}
	}
	return status
}

func isBuiltinName(r *Runner, name string) bool {
	_, ok := r.builtins[name]
	return ok
}

func builtinCommand(r *Runner, args []string) int {
	if len(args) < 2 {
		return 0
	}
	rest := args[1:]
	if rest[0] == "-v" {
		if len(rest) < 2 {
			return 1
		}
		if path, err := exec.LookPath(rest[1]); err == nil {
			fmt.Fprintln(r.Stdout, path)
			return 0
		}
		return 1
	}
	return r.runExternal(rest)
}

func builtinBuiltin(r *Runner, args []string) int {
	if len(args) < 2 {
		return 0
	}
	fn, ok := r.builtins[args[1]]
	if !ok {
		r.errorf("builtin: %s: not a shell builtin", args[1])
		return 1
	}
	return fn(r, args[1:])
}

func builtinJobs(r *Runner, args []string) int {
	for _, j := range r.Sh.Jobs.List() {
		fmt.Fprintln(r.Stdout, j.Summary())
	}
	return 0
}

func builtinBg(r *Runner, args []string) int {
	j, ok := jobArg(r, args)
	if !ok {
		return 1
	}
	j.Background = true
	if err := r.Sh.Jobs.Continue(j); err != nil {
		r.errorf("bg: %v", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, j.Summary())
	return 0
}

func builtinFg(r *Runner, args []string) int {
	j, ok := jobArg(r, args)
	if !ok {
		return 1
	}
	j.Background = false
	r.Sh.Jobs.SetForeground(j.PGID)
	if err := r.Sh.Jobs.Continue(j); err != nil {
		r.errorf("fg: %v", err)
		return 1
	}
	status := r.Sh.Jobs.WaitForeground(j)
	r.Sh.Jobs.RestoreForeground()
	r.Sh.LastExit = status
	return status
}

func jobArg(r *Runner, args []string) (*job.Job, bool) {
	jobs := r.Sh.Jobs.List()
	if len(jobs) == 0 {
		r.errorf("%s: no current job", args[0])
		return nil, false
	}
	if len(args) < 2 {
		return jobs[len(jobs)-1], true
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[1], "%"))
	if err != nil {
		r.errorf("%s: %s: no such job", args[0], args[1])
		return nil, false
	}
	j, ok := r.Sh.Jobs.Get(id)
	if !ok {
		r.errorf("%s: %%%d: no such job", args[0], id)
		return nil, false
	}
	return j, true
}

func builtinHash(r *Runner, args []string) int {
	if len(args) > 1 && args[1] == "-r" {
		r.Sh.Paths.Refresh()
		return 0
	}
	names := r.Sh.Paths.Names()
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintln(r.Stdout, n)
	}
	return 0
}

func builtinSet(r *Runner, args []string) int {
	if len(args) == 1 {
		fmt.Fprint(r.Stdout, r.Sh.String())
		return 0
	}
	status := 0
	for _, arg := range args[1:] {
		switch arg {
		case "-e":
			r.Sh.ErrExit = true
		case "+e":
			r.Sh.ErrExit = false
		case "-x":
			r.Sh.XTrace = true
		case "+x":
			r.Sh.XTrace = false
		default:
			r.errorf("set: %s: unknown option", arg)
			status = 1
		}
	}
	return status
}
