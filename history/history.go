// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package history implements the line editor's bounded, append-only
// command history store, persisted to a file between sessions
// (spec.md §4.7's Up/Down and Ctrl+R history browsing).
package history

import (
	"bufio"
	"os"
	"path/filepath"
)

// DefaultCap is the default number of entries kept in memory, matching
// spec.md §4.7's "a bounded, in-memory history (e.g. 1000 entries)".
const DefaultCap = 1000

// Store is a bounded FIFO of entered lines, backed by an append-only file.
type Store struct {
	Path    string
	Cap     int
	entries []string
	loaded  bool
	file    *os.File
}

// New creates a Store writing to path, lazily loaded on first Load call
// (spec.md §4.7 "lazy-loaded on first Up/Down or Ctrl+R").
func New(path string) *Store {
	return &Store{Path: path, Cap: DefaultCap}
}

// DefaultPath returns "~/.rush_history", the default history file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rush_history"
	}
	return filepath.Join(home, ".rush_history")
}

// Load reads the history file into memory, trimming to Cap most-recent
// entries. It is a no-op after the first call.
func (s *Store) Load() error {
	if s.loaded {
		return nil
	}
	s.loaded = true
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		s.entries = append(s.entries, line)
	}
	if cap := s.Cap; cap > 0 && len(s.entries) > cap {
		s.entries = s.entries[len(s.entries)-cap:]
	}
	return sc.Err()
}

// Add appends line to the in-memory store and to the history file,
// trimming the in-memory slice to Cap.
func (s *Store) Add(line string) error {
	if line == "" {
		return nil
	}
	if err := s.Load(); err != nil {
		return err
	}
	s.entries = append(s.entries, line)
	if cap := s.Cap; cap > 0 && len(s.entries) > cap {
		s.entries = s.entries[len(s.entries)-cap:]
	}
	if s.file == nil {
		f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		s.file = f
	}
	_, err := s.file.WriteString(line + "\n")
	return err
}

// Entries returns the in-memory history, oldest first.
func (s *Store) Entries() []string {
	s.Load()
	return s.entries
}

// At returns the i'th most recent entry (0 is the latest), used by Up/Down
// navigation, and reports whether i was in range.
func (s *Store) At(i int) (string, bool) {
	s.Load()
	idx := len(s.entries) - 1 - i
	if idx < 0 || idx >= len(s.entries) {
		return "", false
	}
	return s.entries[idx], true
}

// Clear empties the in-memory history and truncates the history file,
// used by the `history -c` builtin.
func (s *Store) Clear() error {
	s.loaded = true
	s.entries = nil
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return err
		}
		s.file = nil
	}
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	s.file = f
	return nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
