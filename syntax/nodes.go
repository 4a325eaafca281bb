// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

// Pos describes a single position in the source line buffer. The lexer
// fills in only Offset; Line and Col are left zero.
type Pos struct {
	Offset int
	Line   int
	Col    int
}

// Node is the base interface satisfied by every syntax tree node.
type Node interface {
	Pos() Pos
	End() Pos
}

// Word is a sequence of parts. Lit values are copies of their bytes, not
// slices of the original line buffer.
type Word struct {
	Parts []WordPart
}

func (w *Word) Pos() Pos {
	if len(w.Parts) == 0 {
		return Pos{}
	}
	return w.Parts[0].Pos()
}

func (w *Word) End() Pos {
	if len(w.Parts) == 0 {
		return Pos{}
	}
	return w.Parts[len(w.Parts)-1].End()
}

// Lit returns the word's value assuming every part is a literal, ignoring
// quoting. Parameter, command and arithmetic parts contribute nothing.
func (w *Word) Lit() string {
	var s []byte
	for _, p := range w.Parts {
		switch x := p.(type) {
		case *Lit:
			s = append(s, x.Value...)
		case *SglQuoted:
			s = append(s, x.Value...)
		case *DblQuoted:
			for _, p2 := range x.Parts {
				if l, ok := p2.(*Lit); ok {
					s = append(s, l.Value...)
				}
			}
		}
	}
	return string(s)
}

// WordPart is one segment of a Word.
type WordPart interface {
	Node
	wordPart()
}

// Lit is a literal run of unquoted text. Quoted reports whether this
// particular run came from inside single or double quotes, even though the
// byte content has already had quote delimiters stripped; it governs whether
// brace/tilde/glob expansion and field splitting apply to it.
type Lit struct {
	ValuePos Pos
	Value    string
	Quoted   bool
}

func (l *Lit) Pos() Pos { return l.ValuePos }
func (l *Lit) End() Pos { return Pos{Offset: l.ValuePos.Offset + len(l.Value)} }
func (*Lit) wordPart()  {}

// SglQuoted is a single-quoted region: always literal, never expanded.
type SglQuoted struct {
	Left, Right Pos
	Value       string
}

func (q *SglQuoted) Pos() Pos { return q.Left }
func (q *SglQuoted) End() Pos { return q.Right }
func (*SglQuoted) wordPart()  {}

// DblQuoted is a double-quoted region. Field splitting and glob expansion
// never apply to its result; parameter/command/arithmetic substitution still
// does, recursively, over Parts.
type DblQuoted struct {
	Left, Right Pos
	Parts       []WordPart
}

func (q *DblQuoted) Pos() Pos { return q.Left }
func (q *DblQuoted) End() Pos { return q.Right }
func (*DblQuoted) wordPart()  {}

// CmdSubst is $(...) or `...`. The lexer captures Raw verbatim (balanced
// parens/backquotes, quote-aware); ResolveCmdSubsts parses Raw into Tree
// once Parse has built the enclosing tree. Backquote records the
// original spelling only for round-tripping diagnostics.
type CmdSubst struct {
	Left, Right Pos
	Raw         string
	Tree        *CommandTree
	Backquote   bool
}

func (c *CmdSubst) Pos() Pos { return c.Left }
func (c *CmdSubst) End() Pos { return c.Right }
func (*CmdSubst) wordPart()  {}

// ArithExp is $(( expr )). The raw expression text is kept verbatim; the
// expand package parses and evaluates it, since evaluation needs live
// variable lookups the syntax package has no access to.
type ArithExp struct {
	Left, Right Pos
	Raw         string
}

func (a *ArithExp) Pos() Pos { return a.Left }
func (a *ArithExp) End() Pos { return a.Right }
func (*ArithExp) wordPart()  {}

// ParamOp is the operator family of a ParamExp, spec.md §4.3 item 3.
type ParamOp int

const (
	ParNone     ParamOp = iota
	ParMinus            // ${n:-w}
	ParAssign           // ${n:=w}
	ParPlus             // ${n:+w}
	ParQuestion         // ${n:?w}
	ParLength           // ${#n}
	ParRemSmallPrefix   // ${n#w}
	ParRemLargePrefix   // ${n##w}
	ParRemSmallSuffix   // ${n%w}
	ParRemLargeSuffix   // ${n%%w}
	ParReplOnce         // ${n/pat/repl}
	ParReplAll          // ${n//pat/repl}
)

// ParamExp is $NAME, ${NAME} or one of the ${NAME<op>word} forms.
type ParamExp struct {
	Dollar Pos
	Rbrace Pos // zero Pos if the short $NAME form was used
	Short  bool
	Name   string
	Op     ParamOp
	Arg    *Word // operand word for Op (default/assign/pattern)
	Repl   *Word // replacement word, only set for ParReplOnce/ParReplAll
}

func (p *ParamExp) Pos() Pos { return p.Dollar }
func (p *ParamExp) End() Pos {
	if p.Short {
		return Pos{Offset: p.Dollar.Offset + 1 + len(p.Name)}
	}
	return p.Rbrace
}
func (*ParamExp) wordPart() {}

// Redirect is one (fd, op, target) triple, spec.md §3.
type Redirect struct {
	OpPos Pos
	Fd    int // source fd; -1 means "default for Op" (0 for <, 1 for >/>>)
	Op    Token
	Word  *Word // nil when Target is a bare fd number (>&N or <&N)
	ToFd  int   // used when Op is LessAnd/GreatAnd and the target is "&N"; -1 otherwise
}

func (r *Redirect) Pos() Pos { return r.OpPos }
func (r *Redirect) End() Pos {
	if r.Word != nil {
		return r.Word.End()
	}
	return r.OpPos
}

// Assign is a leading NAME=value prefix on a SimpleCommand.
type Assign struct {
	NamePos Pos
	Name    string
	Value   *Word // nil means NAME= (assign empty string)
}

func (a *Assign) Pos() Pos { return a.NamePos }
func (a *Assign) End() Pos {
	if a.Value != nil {
		return a.Value.End()
	}
	return Pos{Offset: a.NamePos.Offset + len(a.Name) + 1}
}

// SimpleCommand is one command: assignments, words and redirections, each in
// source order. Backgrounding is recorded on the enclosing Pipeline.
type SimpleCommand struct {
	Assigns []*Assign
	Args    []*Word
	Redirs  []*Redirect
}

func (s *SimpleCommand) Pos() Pos {
	switch {
	case len(s.Assigns) > 0:
		return s.Assigns[0].Pos()
	case len(s.Args) > 0:
		return s.Args[0].Pos()
	case len(s.Redirs) > 0:
		return s.Redirs[0].Pos()
	}
	return Pos{}
}

func (s *SimpleCommand) End() Pos {
	switch {
	case len(s.Redirs) > 0:
		return s.Redirs[len(s.Redirs)-1].End()
	case len(s.Args) > 0:
		return s.Args[len(s.Args)-1].End()
	case len(s.Assigns) > 0:
		return s.Assigns[len(s.Assigns)-1].End()
	}
	return Pos{}
}

// IsEmpty reports whether the command has neither args nor redirections,
// i.e. it is a bare assignment list.
func (s *SimpleCommand) IsEmpty() bool {
	return len(s.Args) == 0 && len(s.Redirs) == 0
}

// Pipeline is a non-empty, left-to-right list of SimpleCommand connected by
// '|'. Background records a trailing '&' on the enclosing and_or entry.
type Pipeline struct {
	Commands   []*SimpleCommand
	Background bool
}

func (p *Pipeline) Pos() Pos { return p.Commands[0].Pos() }
func (p *Pipeline) End() Pos { return p.Commands[len(p.Commands)-1].End() }

// BinOp is the operator joining two CommandTree nodes.
type BinOp int

const (
	BinNone BinOp = iota
	BinAndIf
	BinOrIf
	BinSemi
)

// CommandTree is a left-associative binary tree over &&, || and ;, whose
// leaves are Pipelines. A bare Pipeline is represented as a CommandTree with
// Op == BinNone and Y == nil.
type CommandTree struct {
	X, Y *CommandTree
	Pipe *Pipeline // non-nil only on leaves (Op == BinNone)
	Op   BinOp
}

func (c *CommandTree) Pos() Pos {
	if c.Pipe != nil {
		return c.Pipe.Pos()
	}
	return c.X.Pos()
}

func (c *CommandTree) End() Pos {
	if c.Y != nil {
		return c.Y.End()
	}
	if c.Pipe != nil {
		return c.Pipe.End()
	}
	return c.X.End()
}

// Leaves returns the command tree flattened into its sequence of
// (Pipeline, joining operator that *preceded* it) pairs, left to right. The
// first entry's Op is always BinNone. This is the shape the executor walks.
func (c *CommandTree) Leaves() []CommandTreeLeaf {
	var out []CommandTreeLeaf
	var walk func(t *CommandTree, op BinOp)
	walk = func(t *CommandTree, op BinOp) {
		if t.Pipe != nil {
			out = append(out, CommandTreeLeaf{Pipe: t.Pipe, Op: op})
			return
		}
		walk(t.X, BinNone)
		walk(t.Y, t.Op)
	}
	walk(c, BinNone)
	if len(out) > 0 {
		out[0].Op = BinNone
	}
	return out
}

// CommandTreeLeaf is one pipeline in a flattened CommandTree, together with
// the operator that joins it to the previous leaf.
type CommandTreeLeaf struct {
	Pipe *Pipeline
	Op   BinOp
}
