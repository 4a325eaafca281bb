// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"regexp"
	"strconv"

	"github.com/uky007/rush/pattern"
	"github.com/uky007/rush/syntax"
)

// UnsetParameterError is raised by ${name:?word} against an unset or empty
// parameter (spec.md §4.3 item 3).
type UnsetParameterError struct {
	Name    string
	Message string
}

func (u *UnsetParameterError) Error() string {
	if u.Message != "" {
		return "rush: " + u.Name + ": " + u.Message
	}
	return "rush: " + u.Name + ": parameter not set"
}

// paramExp evaluates one ${...}/$NAME reference against cfg. op/arg/repl
// carry the already-expanded operand/replacement words, since the operand of
// ${n:-word} etc. is itself subject to expansion before use.
func (cfg *Config) paramExp(pe *syntax.ParamExp) (string, error) {
	vr, str := cfg.paramValue(pe.Name)
	set := vr.IsSet()

	switch pe.Op {
	case syntax.ParNone:
		return str, nil

	case syntax.ParLength:
		return strconv.Itoa(len([]rune(str))), nil

	case syntax.ParMinus:
		if !set || str == "" {
			return cfg.expandOperand(pe.Arg)
		}
		return str, nil

	case syntax.ParPlus:
		if set && str != "" {
			return cfg.expandOperand(pe.Arg)
		}
		return "", nil

	case syntax.ParQuestion:
		if !set || str == "" {
			msg, err := cfg.expandOperand(pe.Arg)
			if err != nil {
				return "", err
			}
			return "", &UnsetParameterError{Name: pe.Name, Message: msg}
		}
		return str, nil

	case syntax.ParAssign:
		if !set || str == "" {
			val, err := cfg.expandOperand(pe.Arg)
			if err != nil {
				return "", err
			}
			if err := cfg.Env.Set(pe.Name, Variable{Set: true, Value: val}); err != nil {
				return "", err
			}
			return val, nil
		}
		return str, nil

	case syntax.ParRemSmallPrefix, syntax.ParRemLargePrefix,
		syntax.ParRemSmallSuffix, syntax.ParRemLargeSuffix:
		pat, err := cfg.expandOperand(pe.Arg)
		if err != nil {
			return "", err
		}
		suffix := pe.Op == syntax.ParRemSmallSuffix || pe.Op == syntax.ParRemLargeSuffix
		greedy := pe.Op == syntax.ParRemLargePrefix || pe.Op == syntax.ParRemLargeSuffix
		return removePattern(str, pat, suffix, greedy), nil

	case syntax.ParReplOnce, syntax.ParReplAll:
		pat, err := cfg.expandOperand(pe.Arg)
		if err != nil {
			return "", err
		}
		repl, err := cfg.expandOperand(pe.Repl)
		if err != nil {
			return "", err
		}
		return replacePattern(str, pat, repl, pe.Op == syntax.ParReplAll), nil
	}
	return str, nil
}

// paramValue resolves one of the special parameters ($?, $$, $!, $0, $#,
// $RANDOM, $SECONDS) or a plain variable lookup.
func (cfg *Config) paramValue(name string) (Variable, string) {
	switch name {
	case "?":
		return Variable{Set: true, Value: strconv.Itoa(cfg.LastExit)}, strconv.Itoa(cfg.LastExit)
	case "$":
		return Variable{Set: true, Value: strconv.Itoa(cfg.PID)}, strconv.Itoa(cfg.PID)
	case "!":
		v := strconv.Itoa(cfg.LastBgPID)
		return Variable{Set: true, Value: v}, v
	case "0":
		return Variable{Set: true, Value: cfg.Arg0}, cfg.Arg0
	case "#":
		v := strconv.Itoa(len(cfg.Positional))
		return Variable{Set: true, Value: v}, v
	case "RANDOM":
		if cfg.Random != nil {
			v := strconv.Itoa(int(cfg.Random()))
			return Variable{Set: true, Value: v}, v
		}
	case "SECONDS":
		if cfg.Seconds != nil {
			v := strconv.Itoa(int(cfg.Seconds()))
			return Variable{Set: true, Value: v}, v
		}
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 1 && n <= len(cfg.Positional) {
		v := cfg.Positional[n-1]
		return Variable{Set: true, Value: v}, v
	}
	vr := cfg.Env.Get(name)
	return vr, vr.Value
}

// expandOperand expands a ${...} operand/replacement word using the same
// pipeline as a plain word, minus field splitting and globbing (its result
// feeds straight back into a single string).
func (cfg *Config) expandOperand(w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	return cfg.expandWordNoSplit(w)
}

// removePattern strips the shortest/longest match of pattern from the
// front or back of str, per ${n#w}/${n##w}/${n%w}/${n%%w}. greedy selects
// the "large" (##, %%) forms; the Shortest pattern mode (which makes every
// glob quantifier ungreedy) is what actually picks shortest vs longest, so
// both prefix forms share the same wrapping regex.
func removePattern(str, pat string, fromEnd, greedy bool) string {
	if pat == "" {
		return str
	}
	mode := pattern.Mode(0)
	if !greedy {
		mode = pattern.Shortest
	}
	expr, err := pattern.Regexp(pat, mode)
	if err != nil {
		return str
	}
	switch {
	case fromEnd && !greedy:
		// ".*" greedily consumes everything it can, leaving the pattern to
		// match as far right as possible: the shortest matching suffix.
		expr = ".*(" + expr + ")$"
	case fromEnd:
		expr = "(" + expr + ")$"
	default:
		expr = "^(" + expr + ")"
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return str
	}
	loc := rx.FindStringSubmatchIndex(str)
	if loc == nil {
		return str
	}
	return str[:loc[2]] + str[loc[3]:]
}

// replacePattern implements ${n/pat/repl} (first match) and ${n//pat/repl}
// (all matches).
func replacePattern(str, pat, repl string, all bool) string {
	if pat == "" {
		return str
	}
	expr, err := pattern.Regexp(pat, pattern.Shortest)
	if err != nil {
		return str
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return str
	}
	if all {
		return rx.ReplaceAllStringFunc(str, func(string) string { return repl })
	}
	loc := rx.FindStringIndex(str)
	if loc == nil {
		return str
	}
	return str[:loc[0]] + repl + str[loc[1]:]
}
