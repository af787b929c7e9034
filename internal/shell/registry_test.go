package shell

import (
	"errors"
	"strings"
	"testing"

	"github.com/jcollard/webshell/internal/cachefs"
	"github.com/jcollard/webshell/internal/proc"
	"github.com/jcollard/webshell/internal/storage/memory"
	"github.com/jcollard/webshell/internal/vfs"
)

// sink collects output and error text for assertions.
type sink struct {
	out []string
	err []string
}

func (s *sink) ctx(fsys vfs.FileSystem) *Context {
	return &Context{
		FS:     fsys,
		Output: func(text string) { s.out = append(s.out, text) },
		Error:  func(text string) { s.err = append(s.err, text) },
	}
}

// stubProcess is a minimal foreground process for dispatch tests.
type stubProcess struct {
	started bool
	onExit  func()
}

func (p *stubProcess) Start()                  { p.started = true }
func (p *stubProcess) Stop()                   {}
func (p *stubProcess) HandleInput(line string) {}
func (p *stubProcess) SetCallbacks(out, errOut func(string), onExit func()) {
	p.onExit = onExit
}

func TestRegisterRejectsDuplicatesAcrossKinds(t *testing.T) {
	r := NewRegistry()

	simple := Simple{CommandName: "greet", Run: func(args []string, fsys vfs.FileSystem) Result {
		return ok("hi\n")
	}}
	if err := r.Register(simple); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	contextual := Contextual{CommandName: "greet", Run: func(args []string, ctx *Context) (proc.Process, error) {
		return nil, nil
	}}
	err := r.Register(contextual)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second registration under the same name: err = %v, want ErrDuplicate", err)
	}

	if err := r.Register(Simple{CommandName: ""}); err == nil {
		t.Error("empty command name accepted")
	}
}

func TestDispatchSimpleRoutesThroughSinks(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Simple{CommandName: "greet", Run: func(args []string, fsys vfs.FileSystem) Result {
		return Result{Stdout: "hello " + strings.Join(args, " ") + "\n", Stderr: "warned\n"}
	}}); err != nil {
		t.Fatal(err)
	}

	var s sink
	p := r.Dispatch("greet", []string{"world"}, s.ctx(cachefs.New(memory.New())))
	if p != nil {
		t.Error("simple command handed back a process")
	}
	if len(s.out) != 1 || s.out[0] != "hello world\n" {
		t.Errorf("stdout = %v", s.out)
	}
	if len(s.err) != 1 || s.err[0] != "warned\n" {
		t.Errorf("stderr = %v", s.err)
	}
}

func TestDispatchContextualReturnsProcess(t *testing.T) {
	r := NewRegistry()
	want := &stubProcess{}
	if err := r.Register(Contextual{CommandName: "edit", Run: func(args []string, ctx *Context) (proc.Process, error) {
		return want, nil
	}}); err != nil {
		t.Fatal(err)
	}

	var s sink
	got := r.Dispatch("edit", nil, s.ctx(cachefs.New(memory.New())))
	if got != proc.Process(want) {
		t.Errorf("Dispatch returned %v, want the command's process", got)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	r := NewRegistry()
	var s sink
	if p := r.Dispatch("nope", nil, s.ctx(cachefs.New(memory.New()))); p != nil {
		t.Error("unknown command returned a process")
	}
	if len(s.err) != 1 || s.err[0] != "nope: command not found" {
		t.Errorf("stderr = %v", s.err)
	}
}

func TestDispatchContainsPanics(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Simple{CommandName: "boom", Run: func(args []string, fsys vfs.FileSystem) Result {
		panic("kaput")
	}}); err != nil {
		t.Fatal(err)
	}

	var s sink
	if p := r.Dispatch("boom", nil, s.ctx(cachefs.New(memory.New()))); p != nil {
		t.Error("panicking command returned a process")
	}
	if len(s.err) != 1 || !strings.Contains(s.err[0], "kaput") {
		t.Errorf("stderr = %v", s.err)
	}
}

func TestDispatchContextualError(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Contextual{CommandName: "flaky", Run: func(args []string, ctx *Context) (proc.Process, error) {
		return nil, errors.New("backend offline")
	}}); err != nil {
		t.Fatal(err)
	}

	var s sink
	r.Dispatch("flaky", nil, s.ctx(cachefs.New(memory.New())))
	if len(s.err) != 1 || s.err[0] != "flaky: backend offline" {
		t.Errorf("stderr = %v", s.err)
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(Simple{CommandName: name, Run: runPwd}); err != nil {
			t.Fatal(err)
		}
	}
	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		name string
		args []string
	}{
		{"", "", nil},
		{"   \t ", "", nil},
		{"ls", "ls", nil},
		{"ls -la /tmp", "ls", []string{"-la", "/tmp"}},
		{`echo "hello world" done`, "echo", []string{"hello world", "done"}},
		{`write file.txt ""`, "write", []string{"file.txt", ""}},
		{`cat "a b".txt`, "cat", []string{"a b.txt"}},
	}
	for _, c := range cases {
		name, args := ParseLine(c.line)
		if name != c.name {
			t.Errorf("ParseLine(%q) name = %q, want %q", c.line, name, c.name)
			continue
		}
		if len(args) != len(c.args) {
			t.Errorf("ParseLine(%q) args = %#v, want %#v", c.line, args, c.args)
			continue
		}
		for i := range args {
			if args[i] != c.args[i] {
				t.Errorf("ParseLine(%q) args = %#v, want %#v", c.line, args, c.args)
				break
			}
		}
	}
}
