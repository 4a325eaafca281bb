// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

// Variable describes one shell variable's value, mirroring spec.md §3's
// "mapping of variable name -> value". Unset is the zero value.
type Variable struct {
	Set      bool
	Exported bool
	Value    string
}

// IsSet reports whether the variable has ever been assigned a value.
func (v Variable) IsSet() bool { return v.Set }

// Environ is the read side of a shell's variable environment. state.Shell
// implements it; expand never imports state, to keep the dependency
// direction leaf-ward (spec.md §9's "single owning shell context").
type Environ interface {
	// Get retrieves a variable by name. An unset variable's Get returns the
	// zero Variable, so callers should check IsSet rather than comparing
	// against "".
	Get(name string) Variable

	// Each iterates over every currently set variable. Iteration stops
	// early if fn returns false. Exported variables must be included, since
	// ExecEnviron relies on Each to build a child process's environment.
	Each(fn func(name string, v Variable) bool)
}

// WriteEnviron additionally allows assignment, used by ${NAME:=word} and by
// inline command assignments.
type WriteEnviron interface {
	Environ
	Set(name string, v Variable) error
}

// ExecEnviron flattens env into a "NAME=value" slice suitable for a spawned
// process's envp, including only exported variables, matching spec.md §5's
// "Each is required to forward exported variables when executing programs."
func ExecEnviron(env Environ) []string {
	var out []string
	env.Each(func(name string, v Variable) bool {
		if v.Exported {
			out = append(out, name+"="+v.Value)
		}
		return true
	})
	return out
}
