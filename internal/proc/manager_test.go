package proc

import "testing"

// fakeProcess records lifecycle calls; exit() simulates a natural exit.
type fakeProcess struct {
	starts int
	stops  int
	inputs []string
	out    func(string)
	errOut func(string)
	onExit func()
	order  *[]string
	name   string
}

func (p *fakeProcess) Start() {
	p.starts++
	if p.order != nil {
		*p.order = append(*p.order, p.name+".start")
	}
}

func (p *fakeProcess) Stop() {
	p.stops++
	if p.order != nil {
		*p.order = append(*p.order, p.name+".stop")
	}
}

func (p *fakeProcess) HandleInput(line string) { p.inputs = append(p.inputs, line) }

func (p *fakeProcess) SetCallbacks(out, errOut func(string), onExit func()) {
	p.out = out
	p.errOut = errOut
	p.onExit = onExit
}

func (p *fakeProcess) exit() {
	if p.onExit != nil {
		p.onExit()
	}
}

// rawProcess additionally accepts raw key presses.
type rawProcess struct {
	fakeProcess
	keys []string
}

func (p *rawProcess) HandleKey(key string) bool {
	p.keys = append(p.keys, key)
	return true
}

func TestStartStopsCurrentFirst(t *testing.T) {
	var order []string
	a := &fakeProcess{name: "a", order: &order}
	b := &fakeProcess{name: "b", order: &order}

	m := NewManager(nil, nil, nil)
	m.Start(a)
	m.Start(b)

	if a.stops != 1 {
		t.Errorf("a stopped %d times, want 1", a.stops)
	}
	want := []string{"a.start", "a.stop", "b.start"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if m.Current() != b {
		t.Error("b is not current after swap")
	}
}

func TestStopClearsImmediately(t *testing.T) {
	p := &fakeProcess{}
	m := NewManager(nil, nil, nil)
	m.Start(p)

	m.Stop()
	if m.Current() != nil {
		t.Error("current not cleared immediately on user stop")
	}
	if p.stops != 1 {
		t.Errorf("process stopped %d times, want 1", p.stops)
	}

	// Stop with no current process is a no-op.
	m.Stop()
	if p.stops != 1 {
		t.Errorf("redundant Stop reached the process: %d stops", p.stops)
	}
}

func TestStartWiresTerminalSinks(t *testing.T) {
	var out, errOut []string
	m := NewManager(
		func(text string) { out = append(out, text) },
		func(text string) { errOut = append(errOut, text) },
		nil)

	p := &fakeProcess{}
	m.Start(p)
	if p.out == nil || p.errOut == nil {
		t.Fatal("sinks not wired before Start")
	}
	p.out("hello")
	p.errOut("oops")
	if len(out) != 1 || out[0] != "hello" {
		t.Errorf("out = %v", out)
	}
	if len(errOut) != 1 || errOut[0] != "oops" {
		t.Errorf("errOut = %v", errOut)
	}
}

func TestNaturalExitClearsAndNotifiesObserver(t *testing.T) {
	var observed []Process
	m := NewManager(nil, nil, func(p Process) { observed = append(observed, p) })

	p := &fakeProcess{}
	m.Start(p)
	p.exit()

	if m.Current() != nil {
		t.Error("current not cleared after natural exit")
	}
	if len(observed) != 1 || observed[0] != p {
		t.Errorf("exit observer saw %v", observed)
	}
}

func TestLateExitOfReplacedProcessDoesNotClearSuccessor(t *testing.T) {
	m := NewManager(nil, nil, nil)
	a := &fakeProcess{}
	b := &fakeProcess{}

	m.Start(a)
	m.Start(b)
	// a's asynchronous exit callback fires after b took the foreground.
	a.exit()

	if m.Current() != b {
		t.Error("late exit of a replaced process cleared its successor")
	}
}

func TestHandleInputRouting(t *testing.T) {
	m := NewManager(nil, nil, nil)

	if m.HandleInput("ignored") {
		t.Error("HandleInput handled with no current process")
	}

	p := &fakeProcess{}
	m.Start(p)
	if !m.HandleInput("hello") {
		t.Error("HandleInput not handled with a current process")
	}
	if len(p.inputs) != 1 || p.inputs[0] != "hello" {
		t.Errorf("process saw inputs %v", p.inputs)
	}
}

func TestHandleKeyRequiresCapability(t *testing.T) {
	m := NewManager(nil, nil, nil)

	if m.HandleKey("x") {
		t.Error("HandleKey handled with no current process")
	}

	plain := &fakeProcess{}
	m.Start(plain)
	if m.HandleKey("x") {
		t.Error("HandleKey handled by a process without the raw capability")
	}

	raw := &rawProcess{}
	m.Start(raw)
	if !m.HandleKey("up") {
		t.Error("HandleKey not routed to a raw-capable process")
	}
	if len(raw.keys) != 1 || raw.keys[0] != "up" {
		t.Errorf("raw process saw keys %v", raw.keys)
	}
}
