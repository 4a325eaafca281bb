// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package spawn launches child processes for pipeline stages using the
// three file-action primitives spec.md §4.5 describes (dup2, open, close),
// rather than Go's exec.Cmd, so the executor can assemble a stage's
// descriptor table exactly as the spec's pipeline-assembly algorithm
// requires.
package spawn

// ActionKind is the kind of one file action applied in the child between
// fork/spawn and exec.
type ActionKind int

const (
	Dup2 ActionKind = iota
	Open
	Close
)

// FileAction is one (dup2, open, close) step, applied in order, mirroring
// spec.md §4.5's three action kinds.
type FileAction struct {
	Kind ActionKind

	// Dup2: Fd is dup2'd onto NewFd.
	Fd    int
	NewFd int

	// Open: Path is opened with Flags/Mode and the result lands on Fd.
	Path  string
	Flags int
	Mode  uint32
}

// Dup2Action builds a "dup2(fd, newFd)" action.
func Dup2Action(fd, newFd int) FileAction {
	return FileAction{Kind: Dup2, Fd: fd, NewFd: newFd}
}

// OpenAction builds an "open(path, flags, mode) -> fd" action.
func OpenAction(fd int, path string, flags int, mode uint32) FileAction {
	return FileAction{Kind: Open, Fd: fd, Path: path, Flags: flags, Mode: mode}
}

// CloseAction builds a "close(fd)" action.
func CloseAction(fd int) FileAction {
	return FileAction{Kind: Close, Fd: fd}
}

// Attr controls process-group placement at spawn time, spec.md §4.6's
// "each pipeline gets its own process group" rule.
type Attr struct {
	// Pgid is the target process group. 0 means "start a new group led
	// by this process" (the first stage of a pipeline); a non-zero value
	// joins an already-created group (later stages).
	Pgid int
	// JoinPgid reports whether Pgid should be applied at all; false runs
	// the child in the shell's own process group; no caller in this
	// module spawns that way.
	JoinPgid bool
}
