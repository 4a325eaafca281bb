// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/uky007/rush/expand"
	"github.com/uky007/rush/job"
	"github.com/uky007/rush/pathcache"
	"github.com/uky007/rush/spawn"
	"github.com/uky007/rush/syntax"
)

// stage is one SimpleCommand's fully expanded view: its argv, its
// inline-assignment scope, and the FileAction list its redirections
// compile to, ready to hand to spawn.Run.
type stage struct {
	cmd     *syntax.SimpleCommand
	args    []string
	assigns map[string]string
	actions []spawn.FileAction
	opened  []*os.File // local fds opened for redirects, closed after spawn

	// redirs maps a redirected target fd (0, 1, 2) to the *os.File it
	// should read/write instead, for the in-process builtin fast path
	// below, which has no child process to apply st.actions against.
	redirs map[int]*os.File
}

// runPipeline assembles and runs one pipeline of N stages (spec.md §4.5):
// pipes are created between consecutive stages, every stage's stdin/stdout
// is wired via dup2 FileActions, and the whole pipeline shares one process
// group (spec.md §4.6), given to the terminal in the foreground case.
// maxStackStages is the pipeline length that still fits in a
// stack-resident backing array; longer pipelines get a heap-allocated
// slice sized to their stage count up front, matching spec.md §4.5's
// "small pipelines avoid a heap allocation" guidance.
const maxStackStages = 8

func (r *Runner) runPipeline(p *syntax.Pipeline) error {
	var stackStages [maxStackStages]*stage
	stages := stackStages[:0]
	if len(p.Commands) > maxStackStages {
		stages = make([]*stage, 0, len(p.Commands))
	}
	for _, cmd := range p.Commands {
		st, err := r.prepareStage(cmd)
		if err != nil {
			r.Sh.LastExit = 127
			return nil
		}
		stages = append(stages, st)
	}

	// A single builtin-only stage with no pipe runs in-process, skipping
	// spawn/job-table machinery entirely (spec.md §4.4). A command with no
	// words at all (bare assignment, e.g. `FOO=bar`) also runs here: it
	// has nothing to spawn and only needs its assignment applied.
	if len(stages) == 1 && !p.Background {
		st := stages[0]
		if len(st.args) == 0 {
			r.runInlineAssigns(st)
			r.Sh.LastExit = 0
			return nil
		}
		if fn, ok := r.builtins[firstArg(st.args)]; ok {
			r.trace(st.args)
			undo := r.runInlineAssigns(st)
			restore := r.applyStageRedirects(st)
			code := fn(r, st.args)
			restore()
			undo()
			for _, f := range st.opened {
				f.Close()
			}
			r.Sh.LastExit = code
			return nil
		}
	}

	for _, st := range stages {
		r.trace(st.args)
	}

	type pipe struct{ r, w *os.File }
	pipes := make([]pipe, len(stages)-1)
	for i := range pipes {
		pr, pw, err := os.Pipe()
		if err != nil {
			r.errorf("pipe: %v", err)
			r.Sh.LastExit = 1
			return nil
		}
		pipes[i] = pipe{pr, pw}
	}

	pids := make([]int, 0, len(stages))
	var pgid int
	var spawnErr error
	command := pipelineSummary(p)

	for i, st := range stages {
		actions := append([]spawn.FileAction{}, st.actions...)
		if i > 0 {
			actions = append(actions, spawn.Dup2Action(int(pipes[i-1].r.Fd()), 0))
		}
		if i < len(stages)-1 {
			actions = append(actions, spawn.Dup2Action(int(pipes[i].w.Fd()), 1))
		}
		for _, pp := range pipes {
			actions = append(actions,
				spawn.CloseAction(int(pp.r.Fd())),
				spawn.CloseAction(int(pp.w.Fd())))
		}

		prog, argv, envp := r.resolveExec(st)
		attr := spawn.Attr{JoinPgid: true, Pgid: pgid}
		pid, err := spawn.Run(prog, argv, envp, actions, attr)
		for _, f := range st.opened {
			f.Close()
		}
		if err != nil {
			spawnErr = err
			break
		}
		if pgid == 0 {
			pgid = pid
		}
		pids = append(pids, pid)
	}

	for _, pp := range pipes {
		pp.r.Close()
		pp.w.Close()
	}

	if len(pids) == 0 {
		r.errorf("%s: %v", firstArg(stages[0].args), spawnErr)
		r.Sh.LastExit = 127
		return nil
	}

	j := r.Sh.Jobs.Add(pgid, pids, command, p.Background)
	if p.Background {
		r.Sh.LastBgPID = pids[len(pids)-1]
		fmt.Fprintf(r.Stdout, "[%d] %d\n", j.ID, pgid)
		return nil
	}

	if spawnErr != nil {
		r.errorf("%s: %v", firstArg(stages[len(pids)].args), spawnErr)
	}

	r.Sh.Jobs.SetForeground(pgid)
	status := r.Sh.Jobs.WaitForeground(j)
	r.Sh.Jobs.RestoreForeground()
	if spawnErr != nil {
		status = 127
	}
	r.Sh.LastExit = status
	if j.State == job.Done {
		r.Sh.Jobs.Remove(j.ID)
	} else {
		fmt.Fprintf(r.Stderr, "\n%s\n", j.Summary())
	}
	return nil
}

// runExternal runs args as a single external command, bypassing alias and
// builtin dispatch, used by `command` (spec.md §4.4).
func (r *Runner) runExternal(args []string) int {
	st := &stage{args: args, assigns: map[string]string{}}
	prog, argv, envp := r.resolveExec(st)
	pid, err := spawn.Run(prog, argv, envp, r.stdioActions(), spawn.Attr{JoinPgid: true})
	if err != nil {
		r.errorf("%s: %v", firstArg(args), err)
		return 127
	}
	j := r.Sh.Jobs.Add(pid, []int{pid}, firstArg(args), false)
	r.Sh.Jobs.SetForeground(pid)
	status := r.Sh.Jobs.WaitForeground(j)
	r.Sh.Jobs.RestoreForeground()
	r.Sh.Jobs.Remove(j.ID)
	return status
}

// stdioActions maps the Runner's current Stdin/Stdout/Stderr onto a
// spawned child's fds 0, 1 and 2, ahead of its redirects and pipes.
func (r *Runner) stdioActions() []spawn.FileAction {
	return []spawn.FileAction{
		spawn.Dup2Action(int(r.Stdin.Fd()), 0),
		spawn.Dup2Action(int(r.Stdout.Fd()), 1),
		spawn.Dup2Action(int(r.Stderr.Fd()), 2),
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func pipelineSummary(p *syntax.Pipeline) string {
	var parts []string
	for _, c := range p.Commands {
		var words []string
		for _, w := range c.Args {
			words = append(words, wordRaw(w))
		}
		parts = append(parts, strings.Join(words, " "))
	}
	return strings.Join(parts, " | ")
}

// wordRaw renders a word's literal text for job-table display purposes
// only; it does not need to be a faithful re-expansion.
func wordRaw(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			sb.WriteString(lit.Value)
		}
	}
	return sb.String()
}

// prepareStage expands one SimpleCommand's assignments, args and
// redirections into a stage ready for spawning.
func (r *Runner) prepareStage(cmd *syntax.SimpleCommand) (*stage, error) {
	st := &stage{cmd: cmd, assigns: make(map[string]string)}
	cfg := r.expandConfig()
	for _, a := range cmd.Assigns {
		val := ""
		if a.Value != nil {
			v, err := cfg.Assign(a.Value)
			if err != nil {
				return nil, err
			}
			val = v
		}
		st.assigns[a.Name] = val
	}

	undo := r.runInlineAssigns(st)
	args, err := r.expandWords(cmd.Args)
	undo()
	if err != nil {
		return nil, err
	}
	args = r.resolveAlias(args)
	st.args = args

	for _, rd := range cmd.Redirs {
		if err := r.prepareRedirect(st, rd); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (r *Runner) prepareRedirect(st *stage, rd *syntax.Redirect) error {
	if rd.Word == nil {
		st.actions = append(st.actions, spawn.Dup2Action(rd.ToFd, rd.Fd))
		st.setRedirFile(rd.Fd, st.redirFile(rd.ToFd, r))
		return nil
	}
	cfg := r.expandConfig()
	target, err := cfg.Assign(rd.Word)
	if err != nil {
		return err
	}
	switch rd.Op {
	case syntax.Less:
		f, err := os.Open(target)
		if err != nil {
			return err
		}
		st.opened = append(st.opened, f)
		st.actions = append(st.actions, spawn.Dup2Action(int(f.Fd()), rd.Fd))
		st.setRedirFile(rd.Fd, f)
	case syntax.Great:
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		st.opened = append(st.opened, f)
		st.actions = append(st.actions, spawn.Dup2Action(int(f.Fd()), rd.Fd))
		st.setRedirFile(rd.Fd, f)
	case syntax.DGreat:
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		st.opened = append(st.opened, f)
		st.actions = append(st.actions, spawn.Dup2Action(int(f.Fd()), rd.Fd))
		st.setRedirFile(rd.Fd, f)
	case syntax.LessAnd, syntax.GreatAnd:
		return fmt.Errorf("redirect target must be a bare fd number")
	}
	return nil
}

// setRedirFile records that fd should be backed by f for the in-process
// builtin fast path (applyStageRedirects below); f may be nil if fd names
// something other than stdin/stdout/stderr, which that path can't honor.
func (st *stage) setRedirFile(fd int, f *os.File) {
	if f == nil {
		return
	}
	if st.redirs == nil {
		st.redirs = make(map[int]*os.File)
	}
	st.redirs[fd] = f
}

// redirFile resolves what fd currently refers to, for a bare "&N"
// redirect (e.g. >&2): an earlier redirect in the same stage takes
// priority, falling back to the runner's own stdin/stdout/stderr.
func (st *stage) redirFile(fd int, r *Runner) *os.File {
	if f, ok := st.redirs[fd]; ok {
		return f
	}
	return r.fdFile(fd)
}

// fdFile maps a well-known fd number to the Runner's current descriptor,
// mirroring how the in-process builtins address 0/1/2 through these
// fields rather than raw OS fd numbers.
func (r *Runner) fdFile(fd int) *os.File {
	switch fd {
	case 0:
		return r.Stdin
	case 1:
		return r.Stdout
	case 2:
		return r.Stderr
	default:
		return nil
	}
}

// applyStageRedirects swaps the Runner's stdin/stdout/stderr to a
// builtin-only stage's redirect targets for the duration of its
// in-process call, returning a func to restore them — the in-process
// equivalent of spec.md §4.4's "duplicate the descriptors around the
// call and restore on return" (spawned stages get the same treatment
// via st.actions and posix_spawn_file_actions instead).
func (r *Runner) applyStageRedirects(st *stage) func() {
	if len(st.redirs) == 0 {
		return func() {}
	}
	oldIn, oldOut, oldErr := r.Stdin, r.Stdout, r.Stderr
	if f, ok := st.redirs[0]; ok {
		r.Stdin = f
	}
	if f, ok := st.redirs[1]; ok {
		r.Stdout = f
	}
	if f, ok := st.redirs[2]; ok {
		r.Stderr = f
	}
	return func() {
		r.Stdin, r.Stdout, r.Stderr = oldIn, oldOut, oldErr
	}
}

// resolveExec resolves a stage's argv[0] against PATH (spec.md §4.5
// "Lookup"), and builds the environment slice with this stage's inline
// assignments overlaid on the shell's exported variables.
func (r *Runner) resolveExec(st *stage) (prog string, argv, envp []string) {
	name := firstArg(st.args)
	prog = name
	if !pathcache.IsAbsOrSlashed(name) {
		if resolved, err := exec.LookPath(name); err == nil {
			prog = resolved
		} else {
			prog = filepath.Join("/nonexistent", name)
		}
	}
	return prog, st.args, r.exportedEnviron(st.assigns)
}

// exportedEnviron renders the shell's exported variables as a "NAME=value"
// slice, with a stage's inline assignments (e.g. `FOO=bar cmd`) overlaid
// and always exported for that one invocation, per spec.md §4.4.
func (r *Runner) exportedEnviron(assigns map[string]string) []string {
	var out []string
	for _, kv := range expand.ExecEnviron(r.Sh) {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := assigns[name]; !ok {
			out = append(out, kv)
		}
	}
	for name, val := range assigns {
		out = append(out, name+"="+val)
	}
	return out
}

// runInlineAssigns applies a stage's leading assignments to shell state
// and returns a func that puts every assigned variable back as it was
// (spec.md §4.4). A bare assignment list ignores that func, so its
// assignments persist; prepareStage and the in-process builtin path call
// it, so there the assignments last only for word expansion and the call.
func (r *Runner) runInlineAssigns(st *stage) func() {
	type saved struct {
		v       expand.Variable
		existed bool
	}
	prev := make(map[string]saved, len(st.assigns))
	for name, val := range st.assigns {
		v, existed := r.Sh.Vars[name]
		prev[name] = saved{v, existed}
		v.Set = true
		v.Value = val
		r.Sh.Set(name, v)
	}
	return func() {
		for name, s := range prev {
			if s.existed {
				r.Sh.Set(name, s.v)
			} else {
				r.Sh.Unset(name)
			}
		}
	}
}
