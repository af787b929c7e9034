// Package proc manages the single foreground process of a shell session.
// A process is any longer-lived interactive program launched by a command:
// it receives terminal input while running and reports output, errors and
// its own exit through callbacks supplied by the terminal surface.
package proc

// State describes the lifecycle of a process. Transitions are
// Idle -> Running -> (Stopped | Exited); Stopped is the user-initiated
// path, Exited the natural one.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateExited
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "exited"
	}
}

// Process is the contract an interactive program satisfies. Start and Stop
// are synchronous from the manager's point of view even when the program
// runs asynchronously inside; Stop must be idempotent and safe on a
// process that never started.
type Process interface {
	// Start begins execution.
	Start()

	// Stop terminates execution. Implementations must tolerate repeated
	// calls and calls before Start.
	Stop()

	// HandleInput delivers one line of terminal input.
	HandleInput(line string)

	// SetCallbacks wires the terminal sinks and the exit observer. The
	// manager installs all three before Start; onExit fires when the
	// process ends on its own, not on a user-initiated Stop.
	SetCallbacks(out, errOut func(string), onExit func())
}

// RawInput is the optional capability for processes that consume
// individual key presses instead of (or in addition to) whole lines.
// The manager only routes keys to processes that implement it.
type RawInput interface {
	// HandleKey delivers a single key press; it reports whether the key
	// was consumed.
	HandleKey(key string) bool
}
