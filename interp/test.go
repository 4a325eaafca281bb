// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// builtinTest implements `test expr...` (spec.md §4.4), covering the
// common unary file/string tests, binary string/integer comparisons and
// negation — not full POSIX grouping with parentheses, an explicit
// Non-goal alongside the rest of the scripting surface this shell omits.
func builtinTest(r *Runner, args []string) int {
	if evalTest(args[1:]) {
		return 0
	}
	return 1
}

// builtinBracket implements `[ expr... ]`, requiring and stripping the
// closing bracket.
func builtinBracket(r *Runner, args []string) int {
	if len(args) < 2 || args[len(args)-1] != "]" {
		r.errorf("[: missing closing ]")
		return 2
	}
	if evalTest(args[1 : len(args)-1]) {
		return 0
	}
	return 1
}

func evalTest(e []string) bool {
	if len(e) == 0 {
		return false
	}
	if e[0] == "!" {
		return !evalTest(e[1:])
	}
	if len(e) == 1 {
		return e[0] != ""
	}
	if len(e) == 2 {
		return evalUnary(e[0], e[1])
	}
	if len(e) == 3 {
		return evalBinary(e[0], e[1], e[2])
	}
	// `a -a b` / `a -o b` style combination of two three-token tests.
	if len(e) >= 5 {
		switch e[3] {
		case "-a":
			return evalTest(e[:3]) && evalTest(e[4:])
		case "-o":
			return evalTest(e[:3]) || evalTest(e[4:])
		}
	}
	return false
}

func evalUnary(op, operand string) bool {
	switch op {
	case "-z":
		return operand == ""
	case "-n":
		return operand != ""
	case "-e":
		_, err := os.Stat(operand)
		return err == nil
	case "-f":
		fi, err := os.Stat(operand)
		return err == nil && fi.Mode().IsRegular()
	case "-d":
		fi, err := os.Stat(operand)
		return err == nil && fi.IsDir()
	case "-r":
		return unix.Access(operand, unix.R_OK) == nil
	case "-w":
		return unix.Access(operand, unix.W_OK) == nil
	case "-x":
		return unix.Access(operand, unix.X_OK) == nil
	case "-s":
		fi, err := os.Stat(operand)
		return err == nil && fi.Size() > 0
	case "-L":
		fi, err := os.Lstat(operand)
		return err == nil && fi.Mode()&os.ModeSymlink != 0
	}
	return false
}

func evalBinary(lhs, op, rhs string) bool {
	switch op {
	case "=", "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	case "-eq":
		return cmpInt(lhs, rhs) == 0
	case "-ne":
		return cmpInt(lhs, rhs) != 0
	case "-lt":
		return cmpInt(lhs, rhs) < 0
	case "-le":
		return cmpInt(lhs, rhs) <= 0
	case "-gt":
		return cmpInt(lhs, rhs) > 0
	case "-ge":
		return cmpInt(lhs, rhs) >= 0
	}
	return false
}

func cmpInt(a, b string) int {
	na, _ := strconv.Atoi(a)
	nb, _ := strconv.Atoi(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}
