// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package job

import (
	"os/exec"
	"syscall"
	"testing"
)

func TestTableAddGetRemoveList(t *testing.T) {
	tbl := NewTable()
	j1 := tbl.Add(111, []int{111}, "sleep 1", false)
	j2 := tbl.Add(222, []int{222, 223}, "a | b", true)

	if j1.ID != 1 || j2.ID != 2 {
		t.Fatalf("job IDs = %d, %d, want 1, 2", j1.ID, j2.ID)
	}

	if got, ok := tbl.Get(1); !ok || got != j1 {
		t.Fatalf("Get(1) = %v, %v, want %v, true", got, ok, j1)
	}

	list := tbl.List()
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("List() = %+v, want ordered [1, 2]", list)
	}

	tbl.Remove(1)
	if _, ok := tbl.Get(1); ok {
		t.Fatal("job 1 should have been removed")
	}
	if len(tbl.List()) != 1 {
		t.Fatalf("List() after Remove = %+v, want one job left", tbl.List())
	}
}

func TestJobSummary(t *testing.T) {
	j := &Job{ID: 3, Command: "sleep 5", State: Running, Background: true}
	want := "[3] Running\tsleep 5 &"
	if got := j.Summary(); got != want {
		t.Fatalf("Summary() = %q, want %q", got, want)
	}
}

// spawnRealJob starts a real, detached process group running name, so
// WaitForeground/Reap can be exercised against an actual pid/pgid instead
// of a fake job record.
func spawnRealJob(t *testing.T, tbl *Table, name string, args ...string) *Job {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting %s: %v", name, err)
	}
	pid := cmd.Process.Pid
	t.Cleanup(func() { cmd.Process.Release() })
	return tbl.Add(pid, []int{pid}, name, false)
}

func TestWaitForegroundExitStatus(t *testing.T) {
	tbl := NewTable()
	j := spawnRealJob(t, tbl, "true")
	if status := tbl.WaitForeground(j); status != 0 {
		t.Fatalf("WaitForeground(true) = %d, want 0", status)
	}
	if j.State != Done {
		t.Fatalf("job state = %v, want Done", j.State)
	}
}

func TestWaitForegroundNonZeroExit(t *testing.T) {
	tbl := NewTable()
	j := spawnRealJob(t, tbl, "false")
	if status := tbl.WaitForeground(j); status != 1 {
		t.Fatalf("WaitForeground(false) = %d, want 1", status)
	}
}
