// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"testing"

	"github.com/uky007/rush/syntax"
)

func newCfg(env mapEnviron) *Config {
	return &Config{Env: env, Arg0: "rush", LastExit: 7, PID: 123, LastBgPID: 456, Positional: []string{"a", "b"}}
}

func TestParamExpBasics(t *testing.T) {
	env := mapEnviron{"foo": {Set: true, Value: "bar"}, "empty": {Set: true, Value: ""}}
	cfg := newCfg(env)

	tests := []struct {
		name string
		pe   *syntax.ParamExp
		want string
	}{
		{"PlainSet", &syntax.ParamExp{Name: "foo", Short: true}, "bar"},
		{"PlainUnset", &syntax.ParamExp{Name: "nope", Short: true}, ""},
		{"Length", &syntax.ParamExp{Name: "foo", Op: syntax.ParLength}, "3"},
		{"ExitStatus", &syntax.ParamExp{Name: "?", Short: true}, "7"},
		{"PID", &syntax.ParamExp{Name: "$", Short: true}, "123"},
		{"BgPID", &syntax.ParamExp{Name: "!", Short: true}, "456"},
		{"Arg0", &syntax.ParamExp{Name: "0", Short: true}, "rush"},
		{"ArgCount", &syntax.ParamExp{Name: "#", Short: true}, "2"},
		{"Positional1", &syntax.ParamExp{Name: "1", Short: true}, "a"},
		{"Positional2", &syntax.ParamExp{Name: "2", Short: true}, "b"},
		{
			"DefaultUnset",
			&syntax.ParamExp{Name: "nope", Op: syntax.ParMinus, Arg: litWord("d")},
			"d",
		},
		{
			"DefaultSet",
			&syntax.ParamExp{Name: "foo", Op: syntax.ParMinus, Arg: litWord("d")},
			"bar",
		},
		{
			"DefaultEmptyUsesFallback",
			&syntax.ParamExp{Name: "empty", Op: syntax.ParMinus, Arg: litWord("d")},
			"d",
		},
		{
			"AltSet",
			&syntax.ParamExp{Name: "foo", Op: syntax.ParPlus, Arg: litWord("alt")},
			"alt",
		},
		{
			"AltUnset",
			&syntax.ParamExp{Name: "nope", Op: syntax.ParPlus, Arg: litWord("alt")},
			"",
		},
		{
			"RemoveSuffix",
			&syntax.ParamExp{Name: "foo", Op: syntax.ParRemSmallSuffix, Arg: litWord("ar")},
			"b",
		},
		{
			"RemovePrefix",
			&syntax.ParamExp{Name: "foo", Op: syntax.ParRemSmallPrefix, Arg: litWord("ba")},
			"r",
		},
		{
			"ReplaceOnce",
			&syntax.ParamExp{Name: "foo", Op: syntax.ParReplOnce, Arg: litWord("a"), Repl: litWord("X")},
			"bXr",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cfg.paramExp(tc.pe)
			if err != nil {
				t.Fatalf("paramExp error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("paramExp(%+v) = %q, want %q", tc.pe, got, tc.want)
			}
		})
	}
}

func TestParamExpQuestionUnset(t *testing.T) {
	env := mapEnviron{}
	cfg := newCfg(env)
	pe := &syntax.ParamExp{Name: "nope", Op: syntax.ParQuestion, Arg: litWord("must be set")}
	_, err := cfg.paramExp(pe)
	if err == nil {
		t.Fatal("expected an UnsetParameterError")
	}
	if _, ok := err.(*UnsetParameterError); !ok {
		t.Fatalf("expected *UnsetParameterError, got %T", err)
	}
}

func TestParamExpAssign(t *testing.T) {
	env := mapEnviron{}
	cfg := newCfg(env)
	pe := &syntax.ParamExp{Name: "nope", Op: syntax.ParAssign, Arg: litWord("v")}
	got, err := cfg.paramExp(pe)
	if err != nil {
		t.Fatalf("paramExp error: %v", err)
	}
	if got != "v" {
		t.Fatalf("paramExp(:=) = %q, want %q", got, "v")
	}
	if env["nope"].Value != "v" {
		t.Fatalf("assignment did not persist into env: %+v", env["nope"])
	}
}
