// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package pathcache indexes executable basenames across $PATH for
// completion and highlighting. It is a pure accelerator (spec.md §3): a
// negative lookup must never block execution, which always falls through
// to posix_spawnp regardless of what the cache says.
package pathcache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Cache holds the set of command basenames found across every $PATH
// directory, plus the signature it was built from.
type Cache struct {
	mu    sync.RWMutex
	path  string
	dirs  []string
	mtime map[string]time.Time
	names map[string]bool

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// New builds a Cache from the given PATH string and starts watching its
// directories for changes. Watch setup failures are silent: the cache
// simply falls back to signature-based rechecking (spec.md §9's advisory
// contract still holds either way).
func New(path string) *Cache {
	c := &Cache{mtime: make(map[string]time.Time), names: make(map[string]bool)}
	c.SetPath(path)
	return c
}

// SetPath rebuilds the cache for a new $PATH value, called whenever the
// shell assigns PATH (spec.md §9).
func (c *Cache) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopWatch()
	c.path = path
	c.dirs = filepath.SplitList(path)
	c.rebuildLocked()
	c.startWatchLocked()
}

// Lookup reports whether name was seen in some $PATH directory as of the
// last (re)build. A false here is only a hint; callers must still attempt
// to execute the command.
func (c *Cache) Lookup(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.staleLocked() {
		c.mu.RUnlock()
		c.Refresh()
		c.mu.RLock()
	}
	return c.names[name]
}

// Names returns every indexed basename, sorted by the caller if needed;
// used by command completion (spec.md §4.7).
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	return out
}

// Refresh rechecks the (PATH, per-dir mtime) signature and rebuilds the
// index if anything changed, spec.md §3's described invalidation
// mechanism; called by Lookup when the signature is stale, by the
// fsnotify watch loop, and by `hash -r`.
func (c *Cache) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked() {
		c.rebuildLocked()
	}
}

func (c *Cache) staleLocked() bool {
	for _, dir := range c.dirs {
		fi, err := os.Stat(dir)
		if err != nil {
			if _, tracked := c.mtime[dir]; tracked {
				return true
			}
			continue
		}
		if !fi.ModTime().Equal(c.mtime[dir]) {
			return true
		}
	}
	return false
}

func (c *Cache) rebuildLocked() {
	names := make(map[string]bool)
	mtimes := make(map[string]time.Time)
	for _, dir := range c.dirs {
		if dir == "" {
			dir = "."
		}
		fi, err := os.Stat(dir)
		if err != nil {
			continue
		}
		mtimes[dir] = fi.ModTime()
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				continue
			}
			names[e.Name()] = true
		}
	}
	c.names = names
	c.mtime = mtimes
}

// startWatchLocked installs an fsnotify watch on every PATH directory so
// that a binary being installed/removed invalidates the cache immediately,
// without waiting for the next prompt's signature check (additive
// responsiveness on top of spec.md §3's described mechanism).
func (c *Cache) startWatchLocked() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	for _, dir := range c.dirs {
		if dir == "" {
			dir = "."
		}
		_ = w.Add(dir)
	}
	c.watcher = w
	c.stop = make(chan struct{})
	go c.watchLoop(w, c.stop)
}

func (c *Cache) watchLoop(w *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				c.Refresh()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		case <-stop:
			w.Close()
			return
		}
	}
}

func (c *Cache) stopWatch() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
		c.watcher = nil
	}
}

// IsAbsOrSlashed reports whether name contains a path separator, meaning
// it should be executed directly rather than looked up via PATH
// (spec.md §4.5 "Lookup").
func IsAbsOrSlashed(name string) bool {
	return strings.ContainsRune(name, os.PathSeparator) || filepath.IsAbs(name)
}
