// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"strconv"
	"strings"

	"github.com/uky007/rush/syntax"
)

// Braces performs brace expansion on a word (spec.md §4.3 item 1): comma
// lists "{a,b,c}" and lexical/numeric ranges "{1..9}"/"{a..z}", with
// arbitrary nesting, expanded in lexical order. It operates purely on the
// literal text of unquoted Lit parts; a word containing no unquoted '{' is
// returned unchanged as a single-element slice.
//
// Malformed braces (no matching '}', or a body that is neither a comma list
// nor a recognised range) are left untouched rather than rejected, matching
// the teacher's "skip, don't error" behaviour for this purely syntactic
// rewrite.
func Braces(word *syntax.Word) []*syntax.Word {
	lit, ok := soleUnquotedLit(word)
	if !ok {
		return []*syntax.Word{word}
	}
	texts := expandBraceText(lit.Value)
	if len(texts) == 1 && texts[0] == lit.Value {
		return []*syntax.Word{word}
	}
	out := make([]*syntax.Word, len(texts))
	for i, t := range texts {
		out[i] = &syntax.Word{Parts: []syntax.WordPart{
			&syntax.Lit{ValuePos: lit.ValuePos, Value: t},
		}}
	}
	return out
}

// soleUnquotedLit reports whether word is made up of exactly one unquoted
// Lit part, the only shape brace expansion applies to (a word containing a
// parameter/command substitution or quoting never takes part, per spec).
func soleUnquotedLit(word *syntax.Word) (*syntax.Lit, bool) {
	if len(word.Parts) != 1 {
		return nil, false
	}
	lit, ok := word.Parts[0].(*syntax.Lit)
	if !ok || lit.Quoted {
		return nil, false
	}
	return lit, true
}

// expandBraceText expands every top-level "{...}" group in s, recursively
// expanding the result of each enumeration entry so that nested braces such
// as "a{b,c{d,e}}" fully enumerate. If the first group is neither a comma
// list nor a range, s is returned unchanged and later groups are not tried.
func expandBraceText(s string) []string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return []string{s}
	}
	end := matchingBrace(s, start)
	if end < 0 {
		return []string{s}
	}
	body := s[start+1 : end]
	entries, ok := splitBraceBody(body)
	if !ok {
		// Not a comma list; try a range before giving up.
		entries, ok = rangeEntries(body)
		if !ok {
			return []string{s}
		}
	}

	prefix := s[:start]
	suffix := s[end+1:]
	var out []string
	for _, e := range entries {
		for _, tail := range expandBraceText(suffix) {
			out = append(out, expandBraceText(prefix+e+tail)...)
		}
	}
	return out
}

// matchingBrace returns the index of the '}' matching the '{' at s[open],
// honouring nested braces, or -1 if there is none.
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitBraceBody splits body on top-level commas. It requires at least one
// comma and at least two resulting entries to count as a comma list, so
// "{foo}" (no comma) is left for rangeEntries or left untouched.
func splitBraceBody(body string) ([]string, bool) {
	var entries []string
	depth := 0
	last := 0
	found := false
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				entries = append(entries, body[last:i])
				last = i + 1
				found = true
			}
		}
	}
	if !found {
		return nil, false
	}
	entries = append(entries, body[last:])
	return entries, true
}

// rangeEntries recognises "x..y" and "x..y..step" numeric or single-letter
// ranges (spec.md §4.3's "{1..9}", "{a..z}").
func rangeEntries(body string) ([]string, bool) {
	parts := strings.Split(body, "..")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, false
	}
	step := 1
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n == 0 {
			return nil, false
		}
		step = n
	}

	if lo, hi := asInt(parts[0]), asInt(parts[1]); lo != nil && hi != nil {
		return intRange(*lo, *hi, step), true
	}
	if len(parts[0]) == 1 && len(parts[1]) == 1 && isAlpha(parts[0][0]) && isAlpha(parts[1][0]) {
		return charRange(parts[0][0], parts[1][0], step), true
	}
	return nil, false
}

func asInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func intRange(lo, hi, step int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if lo <= hi {
		for v := lo; v <= hi; v += step {
			out = append(out, strconv.Itoa(v))
		}
	} else {
		for v := lo; v >= hi; v -= step {
			out = append(out, strconv.Itoa(v))
		}
	}
	return out
}

func charRange(lo, hi byte, step int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if lo <= hi {
		for v := int(lo); v <= int(hi); v += step {
			out = append(out, string(rune(v)))
		}
	} else {
		for v := int(lo); v >= int(hi); v -= step {
			out = append(out, string(rune(v)))
		}
	}
	return out
}
