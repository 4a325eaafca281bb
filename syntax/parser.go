// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"fmt"
	"regexp"
)

// ParseErrorKind classifies a non-fatal parse failure (spec.md §7).
type ParseErrorKind int

const (
	Unexpected ParseErrorKind = iota
	ExpectedWord
	BadRedirect
)

// ParseError is returned for any grammar violation. It is never fatal: the
// caller aborts the current line, sets $? to 2 and returns to the prompt.
type ParseError struct {
	Kind ParseErrorKind
	Pos  Pos
	Text string
}

func (e *ParseError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("rush: syntax error near '%s'", e.Text)
	}
	return "rush: syntax error"
}

// errNeedInput is returned when a line ends in a state that the grammar
// allows to continue onto a further line: a trailing backslash, an
// unterminated quote/substitution, or a line ending on a binary operator
// (spec.md §6). The REPL should read another line, append it (with a
// newline) to the buffer, and re-parse from the top.
var errNeedInput = fmt.Errorf("rush: more input needed")

// NeedsMoreInput reports whether err indicates the line should be continued
// rather than treated as a parse failure.
func NeedsMoreInput(err error) bool {
	if err == errNeedInput {
		return true
	}
	if le, ok := err.(*LexError); ok {
		return le.Kind == UnterminatedQuote || le.Kind == UnterminatedSubst
	}
	return false
}

// Parser builds a CommandTree from a line buffer via recursive descent over
// the Lexer's token stream.
type Parser struct {
	lx  *Lexer
	tok Token
	err error
}

// NewParser creates a Parser over src. Word values hold copies of their
// bytes, so the returned tree does not refer back to src.
func NewParser(src []byte) *Parser {
	p := &Parser{lx: NewLexer(src)}
	p.next()
	return p
}

func (p *Parser) next() {
	if p.err != nil {
		return
	}
	tok, err := p.lx.Next()
	if err != nil {
		p.err = err
		p.tok = ILLEGAL
		return
	}
	p.tok = tok
}

func (p *Parser) word() *Word { return p.lx.Word() }

// Parse parses a full line: and_or (';' and_or)* [';' | '&']. A newline
// separates and_or lists the same way ';' does, so a multi-line script
// parses into one tree. An empty line (only whitespace/newline) returns
// (nil, nil). A lexer error is returned as is, so NeedsMoreInput sees it.
func Parse(src []byte) (*CommandTree, error) {
	p := NewParser(src)
	tree, err := p.parseLine()
	if p.err != nil {
		return nil, p.err
	}
	return tree, err
}

func (p *Parser) parseLine() (*CommandTree, error) {
	p.skipNewlines()
	if p.tok == EOF {
		return nil, p.err
	}
	tree, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok {
		case Semi, Newline:
			p.next()
			p.skipNewlines()
			if p.tok == EOF {
				return tree, nil
			}
			rhs, err := p.parseAndOr()
			if err != nil {
				return nil, err
			}
			tree = &CommandTree{X: tree, Y: rhs, Op: BinSemi}
		case Amp:
			p.backgroundLast(tree)
			p.next()
			p.skipNewlines()
			if p.tok == EOF {
				return tree, nil
			}
			rhs, err := p.parseAndOr()
			if err != nil {
				return nil, err
			}
			tree = &CommandTree{X: tree, Y: rhs, Op: BinSemi}
		case EOF:
			return tree, p.err
		default:
			return nil, &ParseError{Kind: Unexpected, Pos: p.lx.Pos()}
		}
	}
}

// backgroundLast marks the rightmost pipeline of tree as backgrounded,
// implementing "a trailing '&' sets the background flag on the rightmost
// pipeline" (spec.md §4.2).
func (p *Parser) backgroundLast(tree *CommandTree) {
	t := tree
	for t.Pipe == nil {
		t = t.Y
	}
	t.Pipe.Background = true
}

func (p *Parser) skipNewlines() {
	for p.tok == Newline {
		p.next()
	}
}

func (p *Parser) parseAndOr() (*CommandTree, error) {
	pipe, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	tree := &CommandTree{Pipe: pipe}
	for p.tok == AndIf || p.tok == OrIf {
		op := BinAndIf
		if p.tok == OrIf {
			op = BinOrIf
		}
		p.next()
		p.skipNewlines()
		if p.tok == EOF {
			return nil, errNeedInput
		}
		rhsPipe, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		tree = &CommandTree{X: tree, Y: &CommandTree{Pipe: rhsPipe}, Op: op}
	}
	return tree, nil
}

func (p *Parser) parsePipeline() (*Pipeline, error) {
	pipe := &Pipeline{}
	for {
		cmd, err := p.parseSimpleCommand()
		if err != nil {
			return nil, err
		}
		pipe.Commands = append(pipe.Commands, cmd)
		if p.tok != Pipe {
			break
		}
		p.next()
		p.skipNewlines()
		if p.tok == EOF {
			return nil, errNeedInput
		}
	}
	return pipe, nil
}

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

func (p *Parser) parseSimpleCommand() (*SimpleCommand, error) {
	cmd := &SimpleCommand{}
	// Leading NAME=value assignments, recognised only before the first WORD.
	for p.tok == WORD {
		assign, ok := splitAssign(p.word())
		if !ok {
			break
		}
		cmd.Assigns = append(cmd.Assigns, assign)
		p.next()
	}
	for {
		switch {
		case p.tok == WORD:
			cmd.Args = append(cmd.Args, p.word())
			p.next()
		case p.tok.IsRedirOp():
			r, err := p.parseRedirect()
			if err != nil {
				return nil, err
			}
			cmd.Redirs = append(cmd.Redirs, r)
		default:
			if len(cmd.Args) == 0 && len(cmd.Redirs) == 0 && len(cmd.Assigns) == 0 {
				return nil, &ParseError{Kind: ExpectedWord, Pos: p.lx.Pos()}
			}
			return cmd, nil
		}
	}
}

// splitAssign reports whether w is of the form NAME=value, recognised only
// when the word's first part is an unquoted literal (spec.md §4.2).
func splitAssign(w *Word) (*Assign, bool) {
	if len(w.Parts) == 0 {
		return nil, false
	}
	lit, ok := w.Parts[0].(*Lit)
	if !ok || lit.Quoted {
		return nil, false
	}
	loc := nameRe.FindStringIndex(lit.Value)
	if loc == nil || loc[0] != 0 {
		return nil, false
	}
	eq := loc[1] - 1
	name := lit.Value[:eq]
	rest := lit.Value[eq+1:]

	var valParts []WordPart
	if rest != "" {
		valParts = append(valParts, &Lit{ValuePos: Pos{Offset: lit.ValuePos.Offset + eq + 1}, Value: rest})
	}
	valParts = append(valParts, w.Parts[1:]...)

	a := &Assign{NamePos: lit.ValuePos, Name: name}
	if len(valParts) > 0 {
		a.Value = &Word{Parts: valParts}
	}
	return a, true
}

func (p *Parser) parseRedirect() (*Redirect, error) {
	op := p.tok
	opPos := p.lx.Pos()
	fd := -1
	switch op {
	case Less, LessAnd:
		fd = 0
	case Great, DGreat, GreatAnd:
		fd = 1
	case TwoGreat, TwoDGreat:
		fd = 2
		if op == TwoGreat {
			op = Great
		} else {
			op = DGreat
		}
	}
	p.next()
	r := &Redirect{OpPos: opPos, Fd: fd, Op: op, ToFd: -1}

	if op == LessAnd || op == GreatAnd {
		if p.tok != WORD {
			return nil, &ParseError{Kind: BadRedirect, Pos: p.lx.Pos()}
		}
		w := p.word()
		if n, ok := fdWord(w); ok {
			r.ToFd = n
			p.next()
			return r, nil
		}
		r.Word = w
		p.next()
		return r, nil
	}

	if p.tok != WORD {
		return nil, &ParseError{Kind: BadRedirect, Pos: p.lx.Pos()}
	}
	r.Word = p.word()
	p.next()
	return r, nil
}

// fdWord reports whether w is a bare non-negative integer, used as the
// target of >&N / <&N duplication redirects.
func fdWord(w *Word) (int, bool) {
	if len(w.Parts) != 1 {
		return 0, false
	}
	lit, ok := w.Parts[0].(*Lit)
	if !ok || lit.Quoted || lit.Value == "" {
		return 0, false
	}
	n := 0
	for _, c := range []byte(lit.Value) {
		if !isDigit(c) {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// ParseCmdSubst parses the raw body of a $(...) / `...` into a CommandTree.
// ResolveCmdSubsts calls it for every CmdSubst part once Parse has built the
// enclosing tree, since the lexer only captures the raw span (spec.md §4.1).
func ParseCmdSubst(cs *CmdSubst) error {
	if cs.Raw == "" {
		cs.Tree = nil
		return nil
	}
	tree, err := Parse([]byte(cs.Raw))
	if err != nil && !NeedsMoreInput(err) {
		return err
	}
	cs.Tree = tree
	return nil
}

// ResolveCmdSubsts walks every word in tree and parses any CmdSubst raw
// bodies found, recursively. Call this once after Parse succeeds.
func ResolveCmdSubsts(tree *CommandTree) error {
	if tree == nil {
		return nil
	}
	if tree.Pipe != nil {
		for _, cmd := range tree.Pipe.Commands {
			for _, a := range cmd.Assigns {
				if a.Value != nil {
					if err := resolveWord(a.Value); err != nil {
						return err
					}
				}
			}
			for _, w := range cmd.Args {
				if err := resolveWord(w); err != nil {
					return err
				}
			}
			for _, r := range cmd.Redirs {
				if r.Word != nil {
					if err := resolveWord(r.Word); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := ResolveCmdSubsts(tree.X); err != nil {
		return err
	}
	return ResolveCmdSubsts(tree.Y)
}

func resolveWord(w *Word) error {
	for _, part := range w.Parts {
		switch x := part.(type) {
		case *CmdSubst:
			if err := ParseCmdSubst(x); err != nil {
				return err
			}
			if err := ResolveCmdSubsts(x.Tree); err != nil {
				return err
			}
		case *DblQuoted:
			if err := resolveWord(&Word{Parts: x.Parts}); err != nil {
				return err
			}
		case *ParamExp:
			if x.Arg != nil {
				if err := resolveWord(x.Arg); err != nil {
					return err
				}
			}
			if x.Repl != nil {
				if err := resolveWord(x.Repl); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
