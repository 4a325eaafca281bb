// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package history

import (
	"path/filepath"
	"testing"
)

func TestStoreAddAndAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	s := New(path)
	for _, line := range []string{"echo one", "echo two", "echo three"} {
		if err := s.Add(line); err != nil {
			t.Fatalf("Add(%q): %v", line, err)
		}
	}
	if got, ok := s.At(0); !ok || got != "echo three" {
		t.Fatalf("At(0) = %q, %v, want %q, true", got, ok, "echo three")
	}
	if got, ok := s.At(2); !ok || got != "echo one" {
		t.Fatalf("At(2) = %q, %v, want %q, true", got, ok, "echo one")
	}
	if _, ok := s.At(3); ok {
		t.Fatalf("At(3) should be out of range")
	}
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	s1 := New(path)
	if err := s1.Add("persisted line"); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2 := New(path)
	entries := s2.Entries()
	if len(entries) != 1 || entries[0] != "persisted line" {
		t.Fatalf("Entries() after reload = %q, want [%q]", entries, "persisted line")
	}
}

func TestStoreCapTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	s := New(path)
	s.Cap = 2
	s.Add("a")
	s.Add("b")
	s.Add("c")
	entries := s.Entries()
	if len(entries) != 2 || entries[0] != "b" || entries[1] != "c" {
		t.Fatalf("Entries() = %q, want [b c]", entries)
	}
}

func TestStoreIgnoresEmptyLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	s := New(path)
	if err := s.Add(""); err != nil {
		t.Fatal(err)
	}
	if len(s.Entries()) != 0 {
		t.Fatalf("empty line should not be recorded")
	}
}

func TestStoreClearEmptiesMemoryAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	s := New(path)
	s.Add("one")
	s.Add("two")
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := s.Entries(); len(got) != 0 {
		t.Fatalf("Entries() after Clear = %q, want none", got)
	}

	s.Add("three")
	s2 := New(path)
	entries := s2.Entries()
	if len(entries) != 1 || entries[0] != "three" {
		t.Fatalf("Entries() after Clear+Add, reloaded = %q, want [three]", entries)
	}
}
