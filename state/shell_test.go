// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/uky007/rush/expand"
)

func TestShellGetSetExportUnset(t *testing.T) {
	sh := New()
	sh.Set("FOO", expand.Variable{Set: true, Value: "bar"})
	if got := sh.Get("FOO"); !got.IsSet() || got.Value != "bar" {
		t.Fatalf("Get(FOO) = %+v, want Set bar", got)
	}

	sh.Export("FOO")
	if !sh.Get("FOO").Exported {
		t.Fatal("Export should mark FOO exported")
	}

	sh.Unexport("FOO")
	if sh.Get("FOO").Exported {
		t.Fatal("Unexport should clear the exported flag")
	}

	sh.Unset("FOO")
	if sh.Get("FOO").IsSet() {
		t.Fatal("Unset should remove the variable entirely")
	}
}

func TestShellChdirUpdatesOldPWD(t *testing.T) {
	sh := New()
	start := t.TempDir()
	other := t.TempDir()
	if err := os.Chdir(start); err != nil {
		t.Fatal(err)
	}
	sh.PWD = start

	if err := sh.Chdir(other); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	resolvedOther, _ := filepath.EvalSymlinks(other)
	resolvedPWD, _ := filepath.EvalSymlinks(sh.PWD)
	if resolvedPWD != resolvedOther {
		t.Fatalf("PWD = %q, want %q", sh.PWD, other)
	}
	if sh.OldPWD != start {
		t.Fatalf("OldPWD = %q, want %q", sh.OldPWD, start)
	}
	if sh.Vars["OLDPWD"].Value != start {
		t.Fatalf("$OLDPWD = %q, want %q", sh.Vars["OLDPWD"].Value, start)
	}
}

func TestShellSetPathRefreshesCache(t *testing.T) {
	sh := New()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mytool"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	sh.Set("PATH", expand.Variable{Set: true, Exported: true, Value: dir})
	if !sh.Paths.Lookup("mytool") {
		t.Fatal("setting PATH should rebuild the path cache")
	}
}

func TestNewExpandConfigSnapshotsState(t *testing.T) {
	sh := New()
	sh.LastExit = 5
	sh.LastBgPID = 999
	cfg := sh.NewExpandConfig(nil)
	if cfg.LastExit != 5 || cfg.LastBgPID != 999 || cfg.PID != sh.PID || cfg.Arg0 != "rush" {
		t.Fatalf("NewExpandConfig snapshot mismatch: %+v", cfg)
	}
}

func TestShellRandomAndSeconds(t *testing.T) {
	sh := New()
	if v := sh.Random(); v >= 32768 {
		t.Fatalf("Random() = %d, want < 32768", v)
	}
	if sh.Seconds() < 0 {
		t.Fatal("Seconds() should never be negative")
	}
}
