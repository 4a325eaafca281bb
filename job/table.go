// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package job implements the process-group based job table: tracking,
// reaping, and foreground/background transfer for pipelines launched by
// the executor (spec.md §4.6).
package job

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// State is a job's lifecycle stage.
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Job is one pipeline's process group, tracked from spawn until every
// member process has been reaped.
type Job struct {
	ID      int
	PGID    int
	Pids    []int
	Command string
	State   State
	// ExitStatus is the rightmost stage's exit status once State == Done.
	ExitStatus int
	Background bool
}

// Table owns every job for the shell's lifetime. Job IDs are assigned
// sequentially and never reused while the job is still tracked, matching
// the user-visible "%N" numbering of a real job-control shell.
type Table struct {
	mu     sync.Mutex
	jobs   map[int]*Job
	nextID int
	ttyFd  int
}

// NewTable creates an empty job table. ttyFd defaults to stdin (fd 0),
// the descriptor foreground transfer calls operate against.
func NewTable() *Table {
	return &Table{jobs: make(map[int]*Job), nextID: 1, ttyFd: 0}
}

// Add registers a newly spawned pipeline's process group as a job and
// returns its ID.
func (t *Table) Add(pgid int, pids []int, command string, background bool) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := &Job{ID: t.nextID, PGID: pgid, Pids: pids, Command: command, State: Running, Background: background}
	t.jobs[j.ID] = j
	t.nextID++
	return j
}

// Get looks up a job by ID.
func (t *Table) Get(id int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	return j, ok
}

// Remove drops a job from the table, e.g. once a foreground job has
// finished or a builtin has collected its exit status.
func (t *Table) Remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// List returns every tracked job, ordered by ID.
func (t *Table) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && out[k-1].ID > out[k].ID; k-- {
			out[k-1], out[k] = out[k], out[k-1]
		}
	}
	return out
}

// Reap performs one non-blocking sweep of every live job's members via
// wait4(WNOHANG), updating job state to Stopped or Done as children change
// state. The prompt loop calls it before each new prompt, per spec.md §4.6.
func (t *Table) Reap() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			return
		}
		j := t.jobFor(pid)
		if j == nil {
			continue
		}
		switch {
		case ws.Exited() || ws.Signaled():
			j.removePid(pid)
			if len(j.Pids) == 0 {
				j.State = Done
				j.ExitStatus = exitStatus(ws)
			}
		case ws.Stopped():
			j.State = Stopped
		case ws.Continued():
			j.State = Running
		}
	}
}

// WaitForeground blocks until every process in j has exited or the job
// receives a stop signal, whichever comes first (spec.md §4.6's foreground
// wait). It returns the exit status of j's rightmost pid (its last
// pipeline stage), or 128+SIGTSTP if the job stopped instead of finishing.
func (t *Table) WaitForeground(j *Job) int {
	rightmost := j.Pids[len(j.Pids)-1]
	statuses := make(map[int]int)
	for {
		t.mu.Lock()
		remaining := len(j.Pids)
		t.mu.Unlock()
		if remaining == 0 {
			break
		}
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-j.PGID, &ws, unix.WUNTRACED, nil)
		if err != nil {
			break
		}
		switch {
		case ws.Exited() || ws.Signaled():
			t.mu.Lock()
			statuses[pid] = exitStatus(ws)
			j.removePid(pid)
			t.mu.Unlock()
		case ws.Stopped():
			t.mu.Lock()
			j.State = Stopped
			t.mu.Unlock()
			return 128 + int(unix.SIGTSTP)
		}
	}
	t.mu.Lock()
	j.State = Done
	j.ExitStatus = statuses[rightmost]
	t.mu.Unlock()
	return j.ExitStatus
}

func exitStatus(ws unix.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}

func (t *Table) jobFor(pid int) *Job {
	for _, j := range t.jobs {
		for _, p := range j.Pids {
			if p == pid {
				return j
			}
		}
	}
	return nil
}

func (j *Job) removePid(pid int) {
	for i, p := range j.Pids {
		if p == pid {
			j.Pids = append(j.Pids[:i], j.Pids[i+1:]...)
			return
		}
	}
}

// SetForeground gives the terminal's controlling process group to pgid,
// the `fg`/pipeline-launch half of spec.md §4.6's SIGCONT+tcsetpgrp dance.
func (t *Table) SetForeground(pgid int) error {
	return unix.IoctlSetInt(t.ttyFd, unix.TIOCSPGRP, pgid)
}

// RestoreForeground gives the terminal back to the shell's own process
// group, called once a foreground job stops or exits.
func (t *Table) RestoreForeground() error {
	return t.SetForeground(unix.Getpgrp())
}

// Continue sends SIGCONT to a stopped job's process group, used by `bg`
// and `fg` (spec.md §4.6).
func (t *Table) Continue(j *Job) error {
	j.State = Running
	return unix.Kill(-j.PGID, unix.SIGCONT)
}

// Summary renders a job's `jobs` builtin line, e.g. "[1] Running\tsleep 10 &".
func (j *Job) Summary() string {
	suffix := ""
	if j.Background {
		suffix = " &"
	}
	return fmt.Sprintf("[%d] %s\t%s%s", j.ID, j.State, j.Command, suffix)
}
