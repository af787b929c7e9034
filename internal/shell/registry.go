// Package shell implements command registration and dispatch for the
// in-browser shell. Two descriptor shapes share one namespace: Simple
// commands that run to completion against a filesystem, and Contextual
// commands that may hand a longer-lived process back to the caller.
package shell

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jcollard/webshell/internal/metrics"
	"github.com/jcollard/webshell/internal/proc"
	"github.com/jcollard/webshell/internal/vfs"
)

// ErrDuplicate is returned when a name is registered twice, regardless of
// descriptor kind.
var ErrDuplicate = errors.New("duplicate command registration")

// Result is what a Simple command produces.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Context is the execution surface handed to Contextual commands: the
// session filesystem plus the terminal's output and error sinks.
type Context struct {
	FS     vfs.FileSystem
	Output func(string)
	Error  func(string)
}

// Command is the descriptor union. Exactly two shapes implement it.
type Command interface {
	Name() string
	command() // seals the union
}

// Simple is the fire-and-forget shape: run, report a result, done.
type Simple struct {
	CommandName string
	Run         func(args []string, fsys vfs.FileSystem) Result
}

func (c Simple) Name() string { return c.CommandName }
func (Simple) command()       {}

// Contextual is the process-returning shape. A nil process means the
// command completed inline.
type Contextual struct {
	CommandName string
	Run         func(args []string, ctx *Context) (proc.Process, error)
}

func (c Contextual) Name() string { return c.CommandName }
func (Contextual) command()       {}

// Adapt wraps a Simple command so it satisfies the Contextual contract:
// stdout and stderr are translated onto the context sinks and no process is
// returned. Pre-existing simple commands keep working unchanged while new
// interactive commands opt into the process model.
func Adapt(cmd Simple) Contextual {
	return Contextual{
		CommandName: cmd.CommandName,
		Run: func(args []string, ctx *Context) (proc.Process, error) {
			res := cmd.Run(args, ctx.FS)
			if res.Stdout != "" {
				ctx.Output(res.Stdout)
			}
			if res.Stderr != "" {
				ctx.Error(res.Stderr)
			}
			return nil, nil
		},
	}
}

// Registry stores command descriptors under one namespace. It is owned by
// the session that constructs it; there is no ambient global table.
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a descriptor of either kind. Names must be unique across
// both kinds.
func (r *Registry) Register(cmd Command) error {
	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("register: empty command name")
	}
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("register %s: %w", name, ErrDuplicate)
	}
	r.commands[name] = cmd
	return nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch executes name with args against ctx and returns the foreground
// process the command handed back, or nil when it completed inline.
// Failures of any kind become text on the error sink; nothing escapes the
// dispatch boundary, so a misbehaving command cannot crash the shell loop.
func (r *Registry) Dispatch(name string, args []string, ctx *Context) (p proc.Process) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordCommand("error")
			ctx.Error(fmt.Sprintf("%s: %v", name, rec))
			p = nil
		}
	}()

	cmd, ok := r.commands[name]
	if !ok {
		metrics.RecordCommand("not_found")
		ctx.Error(name + ": command not found")
		return nil
	}

	var run Contextual
	switch c := cmd.(type) {
	case Contextual:
		run = c
	case Simple:
		run = Adapt(c)
	}

	p, err := run.Run(args, ctx)
	if err != nil {
		metrics.RecordCommand("error")
		ctx.Error(fmt.Sprintf("%s: %v", name, err))
		return nil
	}
	metrics.RecordCommand("ok")
	return p
}
