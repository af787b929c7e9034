package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jcollard/webshell/internal/proc"
	"github.com/jcollard/webshell/internal/shell"
	"github.com/jcollard/webshell/internal/vfs"
)

// editProcess is a minimal line editor running as the foreground process.
// Typed lines append to the buffer; .save writes it back, .quit saves and
// exits, .print shows the buffer. Ctrl+D discards and exits.
type editProcess struct {
	fs   vfs.FileSystem
	path string

	lines   []string
	out     func(string)
	errOut  func(string)
	onExit  func()
	stopped bool
}

func (p *editProcess) SetCallbacks(out, errOut func(string), onExit func()) {
	p.out = out
	p.errOut = errOut
	p.onExit = onExit
}

func (p *editProcess) Start() {
	if p.fs.Exists(p.path) {
		content, err := p.fs.Read(p.path)
		if err != nil {
			p.errOut(fmt.Sprintf("edit: %v\n", err))
		} else if content != "" {
			p.lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		}
	}
	p.out(fmt.Sprintf("editing %s (%d lines). .save writes, .quit saves and exits, .print shows.\n",
		p.path, len(p.lines)))
}

func (p *editProcess) Stop() {
	p.stopped = true
}

func (p *editProcess) HandleInput(line string) {
	if p.stopped {
		return
	}
	switch line {
	case ".save":
		p.save()
	case ".quit":
		p.save()
		p.exit()
	case ".print":
		for i, l := range p.lines {
			p.out(fmt.Sprintf("%4d  %s\n", i+1, l))
		}
	default:
		p.lines = append(p.lines, line)
	}
}

// HandleKey consumes Ctrl+D as "discard and exit"; everything else falls
// through to line input.
func (p *editProcess) HandleKey(key string) bool {
	if key == "ctrl+d" {
		p.exit()
		return true
	}
	return false
}

func (p *editProcess) save() {
	content := ""
	if len(p.lines) > 0 {
		content = strings.Join(p.lines, "\n") + "\n"
	}
	if err := p.fs.Write(p.path, content); err != nil {
		p.errOut(fmt.Sprintf("edit: %v\n", err))
		return
	}
	p.out(fmt.Sprintf("wrote %s\n", p.path))
}

func (p *editProcess) exit() {
	if p.stopped {
		return
	}
	p.stopped = true
	if p.onExit != nil {
		p.onExit()
	}
}

func newEditCommand() shell.Contextual {
	return shell.Contextual{
		CommandName: "edit",
		Run: func(args []string, ctx *shell.Context) (proc.Process, error) {
			if len(args) != 1 {
				return nil, errors.New("usage: edit <file>")
			}
			return &editProcess{fs: ctx.FS, path: args[0]}, nil
		},
	}
}
