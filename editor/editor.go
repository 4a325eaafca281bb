// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package editor implements the raw-mode interactive line editor: cursor
// movement, kill ring, history browsing and completion, the single most
// latency-sensitive piece of the shell (spec.md §4.7 — every keystroke
// must redraw before the next one can be read).
package editor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/uky007/rush/history"
	"github.com/uky007/rush/pathcache"
)

// Completer proposes completions for a single word.
type Completer interface {
	Complete(word string) []string
}

// CommandCompleter completes the first word of a line against the PATH
// cache (spec.md §4.7's "commands after &&/||/;/line-start").
type CommandCompleter struct{ Paths *pathcache.Cache }

func (c CommandCompleter) Complete(word string) []string {
	var out []string
	for _, name := range c.Paths.Names() {
		if strings.HasPrefix(name, word) {
			out = append(out, name)
		}
	}
	return out
}

// FileCompleter completes a word against directory entries, spec.md
// §4.7's fallback completion for every other word position.
type FileCompleter struct{}

func (FileCompleter) Complete(word string) []string {
	dir, prefix := ".", word
	if i := strings.LastIndexByte(word, '/'); i >= 0 {
		dir, prefix = word[:i+1], word[i+1:]
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			name := e.Name()
			if dir != "." {
				name = dir + name
			}
			if e.IsDir() {
				name += "/"
			}
			out = append(out, name)
		}
	}
	return out
}

// Editor reads one line at a time from a raw terminal, maintaining the
// buffer, cursor position, kill ring and history cursor across keystrokes.
type Editor struct {
	In     *os.File
	Out    *os.File
	reader *bufio.Reader

	History *history.Store
	CmdComp CommandCompleter
	FileComp FileCompleter

	buf      []rune
	pos      int
	killring string
	histIdx  int
	histSave string
}

// New creates an Editor reading from in and writing to out, both expected
// to be the controlling terminal's fds.
func New(in, out *os.File, h *history.Store, paths *pathcache.Cache) *Editor {
	return &Editor{
		In:      in,
		Out:     out,
		reader:  bufio.NewReader(in),
		History: h,
		CmdComp: CommandCompleter{Paths: paths},
		histIdx: -1,
	}
}

// ReadLine reads one line with prompt displayed, raw mode engaged for the
// duration, returning io.EOF on Ctrl+D with an empty buffer.
func (e *Editor) ReadLine(prompt string) (string, error) {
	fd := int(e.In.Fd())
	if !term.IsTerminal(fd) {
		return e.readLineCooked(prompt)
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return e.readLineCooked(prompt)
	}
	defer term.Restore(fd, state)

	e.buf = e.buf[:0]
	e.pos = 0
	e.histIdx = -1
	fmt.Fprint(e.Out, prompt)

	for {
		r, _, err := e.reader.ReadRune()
		if err != nil {
			if len(e.buf) == 0 {
				return "", io.EOF
			}
			return string(e.buf), nil
		}
		done, line, err := e.handleRune(r, prompt)
		if err != nil {
			return "", err
		}
		if done {
			return line, nil
		}
	}
}

func (e *Editor) readLineCooked(prompt string) (string, error) {
	fmt.Fprint(e.Out, prompt)
	line, err := e.reader.ReadString('\n')
	return strings.TrimRight(line, "\n"), err
}

// handleRune applies one input rune to the edit buffer, per spec.md
// §4.7's minimum key list: printable insert, Backspace/Delete, Left/Right,
// Home/End (Ctrl+A/E), Up/Down history, Ctrl+K/U/W kill, Ctrl+Y yank,
// Ctrl+R reverse search, Tab completion, Enter to accept, Ctrl+D/C.
func (e *Editor) handleRune(r rune, prompt string) (done bool, line string, err error) {
	switch r {
	case '\r', '\n':
		fmt.Fprint(e.Out, "\r\n")
		if e.History != nil {
			e.History.Add(string(e.buf))
		}
		return true, string(e.buf), nil
	case 3: // Ctrl+C
		fmt.Fprint(e.Out, "^C\r\n")
		e.buf = e.buf[:0]
		e.pos = 0
		return true, "", nil
	case 4: // Ctrl+D
		if len(e.buf) == 0 {
			return true, "", io.EOF
		}
		e.deleteForward()
	case 127, 8: // Backspace
		e.backspace()
	case 1: // Ctrl+A
		e.pos = 0
	case 5: // Ctrl+E
		e.pos = len(e.buf)
	case 11: // Ctrl+K
		e.killring = string(e.buf[e.pos:])
		e.buf = e.buf[:e.pos]
	case 21: // Ctrl+U
		e.killring = string(e.buf[:e.pos])
		e.buf = append([]rune{}, e.buf[e.pos:]...)
		e.pos = 0
	case 23: // Ctrl+W
		e.killWordBack()
	case 25: // Ctrl+Y
		e.insert([]rune(e.killring))
	case 18: // Ctrl+R
		e.reverseSearch(prompt)
	case 9: // Tab
		e.complete()
	case 27: // ESC: arrow-key sequences
		e.handleEscape()
	default:
		if r >= 32 {
			e.insert([]rune{r})
		}
	}
	e.redraw(prompt)
	return false, "", nil
}

func (e *Editor) handleEscape() {
	b1, err := e.reader.ReadByte()
	if err != nil || b1 != '[' {
		return
	}
	b2, err := e.reader.ReadByte()
	if err != nil {
		return
	}
	switch b2 {
	case 'C': // Right
		if e.pos < len(e.buf) {
			e.pos++
		}
	case 'D': // Left
		if e.pos > 0 {
			e.pos--
		}
	case 'A': // Up
		e.historyUp()
	case 'B': // Down
		e.historyDown()
	case 'H':
		e.pos = 0
	case 'F':
		e.pos = len(e.buf)
	}
}

func (e *Editor) insert(rs []rune) {
	e.buf = append(e.buf[:e.pos], append(append([]rune{}, rs...), e.buf[e.pos:]...)...)
	e.pos += len(rs)
}

func (e *Editor) backspace() {
	if e.pos == 0 {
		return
	}
	e.buf = append(e.buf[:e.pos-1], e.buf[e.pos:]...)
	e.pos--
}

func (e *Editor) deleteForward() {
	if e.pos >= len(e.buf) {
		return
	}
	e.buf = append(e.buf[:e.pos], e.buf[e.pos+1:]...)
}

func (e *Editor) killWordBack() {
	start := e.pos
	for start > 0 && e.buf[start-1] == ' ' {
		start--
	}
	for start > 0 && e.buf[start-1] != ' ' {
		start--
	}
	e.killring = string(e.buf[start:e.pos])
	e.buf = append(e.buf[:start], e.buf[e.pos:]...)
	e.pos = start
}

func (e *Editor) historyUp() {
	if e.History == nil {
		return
	}
	if e.histIdx == -1 {
		e.histSave = string(e.buf)
	}
	if line, ok := e.History.At(e.histIdx + 1); ok {
		e.histIdx++
		e.buf = []rune(line)
		e.pos = len(e.buf)
	}
}

func (e *Editor) historyDown() {
	if e.histIdx <= -1 {
		return
	}
	e.histIdx--
	if e.histIdx == -1 {
		e.buf = []rune(e.histSave)
	} else if line, ok := e.History.At(e.histIdx); ok {
		e.buf = []rune(line)
	}
	e.pos = len(e.buf)
}

// reverseSearch implements a minimal Ctrl+R: reads one line of search
// text, jumps to the most recent history entry containing it.
func (e *Editor) reverseSearch(prompt string) {
	fmt.Fprint(e.Out, "\r\n(reverse-i-search): ")
	var q []rune
	for {
		r, _, err := e.reader.ReadRune()
		if err != nil || r == '\r' || r == '\n' {
			break
		}
		if r == 127 || r == 8 {
			if len(q) > 0 {
				q = q[:len(q)-1]
			}
			continue
		}
		q = append(q, r)
		fmt.Fprint(e.Out, string(r))
	}
	needle := string(q)
	if needle == "" || e.History == nil {
		return
	}
	for i := 0; ; i++ {
		line, ok := e.History.At(i)
		if !ok {
			break
		}
		if strings.Contains(line, needle) {
			e.buf = []rune(line)
			e.pos = len(e.buf)
			e.histIdx = i
			break
		}
	}
}

// complete runs word-position-aware completion (spec.md §4.7): the first
// word of the line, or the word right after &&/||/;/|, completes against
// commands; every other word completes against filenames.
func (e *Editor) complete() {
	word, start := e.wordUnderCursor()
	var matches []string
	if e.isCommandPosition(start) {
		matches = e.CmdComp.Complete(word)
	} else {
		matches = e.FileComp.Complete(word)
	}
	if len(matches) == 0 {
		return
	}
	common := commonPrefix(matches)
	if len(common) > len(word) {
		rest := []rune(common[len(word):])
		e.insert(rest)
	}
}

func (e *Editor) wordUnderCursor() (word string, start int) {
	start = e.pos
	for start > 0 && e.buf[start-1] != ' ' {
		start--
	}
	return string(e.buf[start:e.pos]), start
}

func (e *Editor) isCommandPosition(wordStart int) bool {
	i := wordStart
	for i > 0 && e.buf[i-1] == ' ' {
		i--
	}
	if i == 0 {
		return true
	}
	tail := string(e.buf[max(0, i-2):i])
	return strings.HasSuffix(tail, "&&") || strings.HasSuffix(tail, "||") || strings.HasSuffix(tail, ";") || strings.HasSuffix(tail, "|")
}

func commonPrefix(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	p := ss[0]
	for _, s := range ss[1:] {
		for !strings.HasPrefix(s, p) {
			p = p[:len(p)-1]
			if p == "" {
				return ""
			}
		}
	}
	return p
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// redraw repaints the current line in place: CR, prompt, buffer, then
// clear-to-end-of-line and reposition the cursor, the minimal ANSI dance
// needed for responsive single-line editing (spec.md §4.7's latency
// budget rules out recomputing more than this per keystroke).
func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.Out, "\r%s%s\x1b[K\r\x1b[%dC", prompt, string(e.buf), visualWidth(prompt)+e.pos)
}

func visualWidth(s string) int {
	return len([]rune(s))
}
