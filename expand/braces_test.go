// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"testing"

	"github.com/uky007/rush/syntax"
)

func litWord(s string) *syntax.Word {
	return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

func bracesResult(w *syntax.Word) []string {
	var out []string
	for _, rw := range Braces(w) {
		lit := rw.Parts[0].(*syntax.Lit)
		out = append(out, lit.Value)
	}
	return out
}

func TestBraces(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"NoBrace", "foo", []string{"foo"}},
		{"CommaList", "{a,b,c}", []string{"a", "b", "c"}},
		{"WithPrefixSuffix", "x{a,b}y", []string{"xay", "xby"}},
		{"NumericRange", "{1..3}", []string{"1", "2", "3"}},
		{"NumericRangeDesc", "{3..1}", []string{"3", "2", "1"}},
		{"NumericRangeStep", "{0..10..5}", []string{"0", "5", "10"}},
		{"LetterRange", "{a..c}", []string{"a", "b", "c"}},
		{"Nested", "a{b,c{d,e}}", []string{"ab", "acd", "ace"}},
		{"MalformedNoClose", "{a,b", []string{"{a,b"}},
		{"SingleEntryNotAList", "{foo}", []string{"{foo}"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := bracesResult(litWord(tc.in))
			if len(got) != len(tc.want) {
				t.Fatalf("Braces(%q) = %q, want %q", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Braces(%q) = %q, want %q", tc.in, got, tc.want)
				}
			}
		})
	}
}

func TestBracesQuotedUntouched(t *testing.T) {
	w := &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: "{a,b}", Quoted: true}}}
	out := Braces(w)
	if len(out) != 1 || out[0] != w {
		t.Fatalf("Braces on a quoted literal must return the word unchanged")
	}
}
