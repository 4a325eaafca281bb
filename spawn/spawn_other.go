// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix && !cgo

package spawn

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Run is the fork+exec fallback for builds without cgo, per spec.md §9's
// "ports that lack posix_spawn must emulate it with fork+exec". It
// resolves the FileAction list in the parent into a flat fd table before
// calling syscall.ForkExec, since the pure-Go exec path has no equivalent
// of posix_spawn_file_actions to run actions in the child itself.
func Run(prog string, argv, envp []string, actions []FileAction, attr Attr) (int, error) {
	if !strings.ContainsRune(prog, '/') {
		resolved, err := exec.LookPath(prog)
		if err != nil {
			return 0, err
		}
		prog = resolved
	}

	fds := make(map[int]uintptr)
	fds[0] = uintptr(os.Stdin.Fd())
	fds[1] = uintptr(os.Stdout.Fd())
	fds[2] = uintptr(os.Stderr.Fd())

	var opened []*os.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	closed := make(map[int]bool)
	for _, act := range actions {
		switch act.Kind {
		case Dup2:
			src, ok := fds[act.Fd]
			if !ok && !closed[act.Fd] {
				src = uintptr(act.Fd)
			}
			fds[act.NewFd] = src
			delete(closed, act.NewFd)
		case Open:
			f, err := os.OpenFile(act.Path, act.Flags, os.FileMode(act.Mode))
			if err != nil {
				return 0, err
			}
			opened = append(opened, f)
			fds[act.Fd] = f.Fd()
			delete(closed, act.Fd)
		case Close:
			delete(fds, act.Fd)
			closed[act.Fd] = true
		}
	}

	maxFd := 2
	for fd := range fds {
		if fd > maxFd {
			maxFd = fd
		}
	}
	files := make([]uintptr, maxFd+1)
	for i := range files {
		if f, ok := fds[i]; ok {
			files[i] = f
		} else {
			files[i] = ^uintptr(0)
		}
	}

	sys := &syscall.SysProcAttr{}
	if attr.JoinPgid || attr.Pgid != 0 {
		sys.Setpgid = true
		sys.Pgid = attr.Pgid
	}

	pid, err := syscall.ForkExec(prog, argv, &syscall.ProcAttr{
		Env:   envp,
		Files: files,
		Sys:   sys,
	})
	if err != nil {
		return 0, err
	}
	return pid, nil
}
