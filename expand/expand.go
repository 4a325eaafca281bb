// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package expand implements the word-expansion pipeline: brace expansion,
// tilde expansion, parameter/variable/arithmetic/command substitution,
// field splitting and glob expansion, applied in that order to every word
// of a parsed command (spec.md §4.3).
package expand

import (
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/uky007/rush/pattern"
	"github.com/uky007/rush/syntax"
)

// Config carries everything the expansion pipeline needs beyond the word
// tree itself: the variable environment, the special parameters ($?, $$,
// $!, $0, positional args, $RANDOM/$SECONDS sources) and the callback used
// to run a command substitution's subtree.
type Config struct {
	Env WriteEnviron

	// GlobStar enables "**" in Filenames mode; NoGlob disables glob
	// expansion altogether (set -f semantics), per spec.md §3.
	GlobStar bool
	NoGlob   bool

	// Subshell runs a parsed $(...) / `...` body and returns its trimmed
	// stdout, injected by the executor so this package never depends on
	// it (spec.md §9's single-direction dependency rule).
	Subshell func(tree *syntax.CommandTree) (string, error)

	LastExit   int
	PID        int
	LastBgPID  int
	Arg0       string
	Positional []string
	Random     func() uint32
	Seconds    func() int64

	ifs     string
	ifsDone bool
}

func (cfg *Config) prepareIFS() {
	if cfg.ifsDone {
		return
	}
	cfg.ifsDone = true
	vr := cfg.Env.Get("IFS")
	if !vr.IsSet() {
		cfg.ifs = " \t\n"
	} else {
		cfg.ifs = vr.Value
	}
}

func (cfg *Config) ifsRune(r rune) bool {
	for _, r2 := range cfg.ifs {
		if r == r2 {
			return true
		}
	}
	return false
}

// fieldPart is one contiguous run of a field, tagged with whether it came
// from a quoted context (which suppresses splitting and globbing on it).
type fieldPart struct {
	val    string
	quoted bool
}

// Fields runs the full pipeline over words already past brace expansion
// (Braces is applied by the caller beforehand, since it can turn one word
// into several before any of the rest of the pipeline runs).
func (cfg *Config) Fields(words ...*syntax.Word) ([]string, error) {
	cfg.prepareIFS()
	var out []string
	for _, w := range words {
		parts, err := cfg.wordParts(w.Parts)
		if err != nil {
			return nil, err
		}
		fields := cfg.splitFields(parts)
		for _, f := range fields {
			expanded, err := cfg.globField(f)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
	}
	return out, nil
}

// expandWordNoSplit expands w (substitutions and quote removal) without
// field splitting or globbing, the shape needed for assignment values,
// ${...} operands and case-pattern scrutinee text.
func (cfg *Config) expandWordNoSplit(w *syntax.Word) (string, error) {
	cfg.prepareIFS()
	if w == nil {
		return "", nil
	}
	parts, err := cfg.wordParts(w.Parts)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.val)
	}
	return sb.String(), nil
}

// Assign expands an assignment's value word, applying the same tilde rule
// as a plain word's first literal (spec.md §4.3 item 2: "also after '=' in
// assignments").
func (cfg *Config) Assign(w *syntax.Word) (string, error) {
	return cfg.expandWordNoSplit(w)
}

// Pattern expands w for use as a case-statement pattern: substitutions run,
// but the result is returned with quoted runs glob-escaped so that literal
// quoted metacharacters don't act as wildcards.
func (cfg *Config) Pattern(w *syntax.Word) (string, error) {
	parts, err := cfg.wordParts(w.Parts)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range parts {
		if p.quoted {
			sb.WriteString(pattern.QuoteMeta(p.val, 0))
		} else {
			sb.WriteString(p.val)
		}
	}
	return sb.String(), nil
}

// wordParts expands every WordPart of a word into field parts, tracking
// whether each run came from a quoted region (suppressing splitting and
// globbing on it later).
func (cfg *Config) wordParts(wps []syntax.WordPart) ([]fieldPart, error) {
	var out []fieldPart
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if i == 0 && !x.Quoted {
				s = expandTilde(s, cfg.Env)
			}
			out = append(out, fieldPart{val: s, quoted: x.Quoted})

		case *syntax.SglQuoted:
			out = append(out, fieldPart{val: x.Value, quoted: true})

		case *syntax.DblQuoted:
			inner, err := cfg.wordParts(x.Parts)
			if err != nil {
				return nil, err
			}
			for _, p := range inner {
				p.quoted = true
				out = append(out, p)
			}

		case *syntax.ParamExp:
			v, err := cfg.paramExp(x)
			if err != nil {
				return nil, err
			}
			out = append(out, fieldPart{val: v})

		case *syntax.CmdSubst:
			v, err := cfg.cmdSubst(x)
			if err != nil {
				return nil, err
			}
			out = append(out, fieldPart{val: v})

		case *syntax.ArithExp:
			n, err := Arithm(cfg.Env, x.Raw)
			if err != nil {
				return nil, err
			}
			out = append(out, fieldPart{val: strconv.FormatInt(n, 10), quoted: true})
		}
	}
	return out, nil
}

// expandTilde implements spec.md §4.3 item 2 against the leading literal of
// a word (or assignment value): "~" / "~/x" expand against $HOME, "~name"
// looks up name in the system password database, and the expansion never
// applies inside quotes (callers only pass the unquoted leading literal).
func expandTilde(s string, env Environ) string {
	if len(s) == 0 || s[0] != '~' {
		return s
	}
	name := s[1:]
	rest := ""
	if i := strings.IndexByte(name, '/'); i >= 0 {
		rest = name[i:]
		name = name[:i]
	}
	if name == "" {
		home := env.Get("HOME")
		if home.IsSet() {
			return home.Value + rest
		}
		if u, err := user.Current(); err == nil {
			return u.HomeDir + rest
		}
		return s
	}
	u, err := user.Lookup(name)
	if err != nil {
		return s
	}
	return u.HomeDir + rest
}

func (cfg *Config) cmdSubst(cs *syntax.CmdSubst) (string, error) {
	if cfg.Subshell == nil || cs.Tree == nil {
		return "", nil
	}
	out, err := cfg.Subshell(cs.Tree)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// splitFields performs IFS-based field splitting on a sequence of field
// parts, skipping quoted runs (spec.md §4.3: "field splitting never applies
// inside double quotes").
func (cfg *Config) splitFields(parts []fieldPart) [][]fieldPart {
	var fields [][]fieldPart
	var cur []fieldPart
	flush := func() {
		if len(cur) > 0 {
			fields = append(fields, cur)
			cur = nil
		}
	}
	sawQuoted := false
	for _, p := range parts {
		if p.quoted {
			sawQuoted = true
			cur = append(cur, p)
			continue
		}
		segs := strings.FieldsFunc(p.val, cfg.ifsRune)
		if len(segs) == 0 {
			if p.val != "" {
				// entirely IFS whitespace: acts as a separator
				flush()
			}
			continue
		}
		for i, seg := range segs {
			if i > 0 {
				flush()
			}
			cur = append(cur, fieldPart{val: seg})
		}
	}
	flush()
	if sawQuoted && len(fields) == 0 {
		fields = append(fields, cur)
	}
	return fields
}

// globField turns one already-split field into one or more resulting
// strings: if any unquoted part contains glob metacharacters, the joined
// field is treated as a filename pattern and expanded against the
// filesystem (spec.md §4.3 item 6); otherwise it is returned unchanged.
func (cfg *Config) globField(parts []fieldPart) ([]string, error) {
	var sb strings.Builder
	hasMeta := false
	for _, p := range parts {
		if !p.quoted && !cfg.NoGlob && pattern.HasMeta(p.val, 0) {
			hasMeta = true
		}
		if p.quoted {
			sb.WriteString(pattern.QuoteMeta(p.val, 0))
		} else {
			sb.WriteString(p.val)
		}
	}
	joined := sb.String()
	if !hasMeta {
		// Undo the QuoteMeta applied to quoted runs above: no globbing
		// happens, so we want the literal text back.
		var plain strings.Builder
		for _, p := range parts {
			plain.WriteString(p.val)
		}
		return []string{plain.String()}, nil
	}
	matches := globPattern(joined, cfg.GlobStar)
	if len(matches) == 0 {
		var plain strings.Builder
		for _, p := range parts {
			plain.WriteString(p.val)
		}
		return []string{plain.String()}, nil
	}
	sort.Strings(matches)
	return matches, nil
}

func globPattern(pat string, globStar bool) []string {
	parts := strings.Split(pat, string(filepath.Separator))
	matches := []string{"."}
	if filepath.IsAbs(pat) {
		matches[0] = string(filepath.Separator)
		parts = parts[1:]
	}
	mode := pattern.Filenames
	if !globStar {
		mode |= pattern.NoGlobStar
	}
	for _, part := range parts {
		if part == "" {
			continue
		}
		expr, err := pattern.Regexp(part, mode|pattern.EntireString)
		if err != nil {
			return nil
		}
		rx, err := regexp.Compile(expr)
		if err != nil {
			return nil
		}
		var next []string
		for _, dir := range matches {
			next = globDir(dir, rx, next)
		}
		matches = next
	}
	return matches
}

func globDir(dir string, rx *regexp.Regexp, matches []string) []string {
	d, err := os.Open(dir)
	if err != nil {
		return matches
	}
	defer d.Close()
	names, _ := d.Readdirnames(-1)
	sort.Strings(names)
	for _, name := range names {
		if len(name) > 0 && name[0] == '.' && !strings.HasPrefix(rx.String(), `^\.`) {
			continue
		}
		if rx.MatchString(name) {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	return matches
}
