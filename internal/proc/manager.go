package proc

import (
	"go.uber.org/zap"

	"github.com/jcollard/webshell/internal/logging"
	"github.com/jcollard/webshell/internal/metrics"
)

// Manager owns at most one running foreground process and routes terminal
// input to it. Like the rest of the core it is single-threaded: callers
// invoke it from the session loop only.
type Manager struct {
	current Process
	out     func(string)
	errOut  func(string)
	onExit  func(Process)
}

// NewManager creates a Manager over the terminal's output and error sinks.
// Nil sinks are replaced with no-ops. onExit, if non-nil, observes every
// process that ends on its own schedule; user-initiated stops do not
// report through it.
func NewManager(out, errOut func(string), onExit func(Process)) *Manager {
	if out == nil {
		out = func(string) {}
	}
	if errOut == nil {
		errOut = func(string) {}
	}
	return &Manager{out: out, errOut: errOut, onExit: onExit}
}

// Current returns the running process, or nil.
func (m *Manager) Current() Process { return m.current }

// Start hands the foreground over to p. Any current process is stopped
// synchronously first, so two processes never share the terminal.
func (m *Manager) Start(p Process) {
	if m.current != nil {
		prev := m.current
		m.current = nil
		prev.Stop()
	}

	p.SetCallbacks(m.out, m.errOut, func() {
		// A natural exit only clears the slot if p still owns it; the
		// user may have stopped p and started a successor already.
		if m.current == p {
			m.current = nil
		}
		if m.onExit != nil {
			m.onExit(p)
		}
	})

	m.current = p
	metrics.RecordProcessStart()
	logging.Debug("foreground process started", zap.String("state", StateRunning.String()))
	p.Start()
}

// Stop terminates the current process, if any. The slot is cleared
// immediately rather than waiting for the asynchronous exit callback: a
// user-initiated stop must reflect in UI state instantly.
func (m *Manager) Stop() {
	if m.current == nil {
		return
	}
	p := m.current
	m.current = nil
	metrics.RecordProcessStop()
	logging.Debug("foreground process stopped", zap.String("state", StateStopped.String()))
	p.Stop()
}

// HandleInput routes one line to the current process. It reports whether
// the input was handled; with no foreground process it is a no-op so the
// shell prompt can consume the line instead.
func (m *Manager) HandleInput(line string) bool {
	if m.current == nil {
		return false
	}
	m.current.HandleInput(line)
	return true
}

// HandleKey routes a raw key press. It is only delivered when the current
// process declares the RawInput capability.
func (m *Manager) HandleKey(key string) bool {
	if m.current == nil {
		return false
	}
	raw, ok := m.current.(RawInput)
	if !ok {
		return false
	}
	return raw.HandleKey(key)
}
