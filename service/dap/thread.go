package dap

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/swiftshader/dbgserver/pkg/logflags"
)

// State is a Thread's position in the run/step/pause state machine, per
// spec §4.7.
type State int

const (
	Running State = iota
	Stepping
	Paused
)

// StopReason names why a Thread transitioned to Paused, used to label the
// "stopped" event body.
type StopReason string

const (
	ReasonBreakpoint StopReason = "breakpoint"
	ReasonStep       StopReason = "step"
	ReasonPause      StopReason = "pause"
)

// StepKind selects which of stepIn/stepOver/stepOut was requested.
type StepKind int

const (
	StepIn StepKind = iota
	StepOver
	StepOut
)

// Location is a source position: a line within a File.
type Location struct {
	File *File
	Line int
}

// Scope is a named bucket of variables attached to a Frame, addressable
// by its own wire ID.
type Scope struct {
	handle    Handle
	name      string // "locals", "arguments", or "registers"
	container *VariableContainer
}

func (s *Scope) ID() int                        { return s.handle.ID() }
func (s *Scope) Name() string                    { return s.name }
func (s *Scope) Container() *VariableContainer   { return s.container }

// Frame is one activation on a Thread's call stack.
type Frame struct {
	handle   Handle
	function string
	loc      Location

	locals    *Scope
	arguments *Scope
	registers *Scope
}

func (f *Frame) ID() int             { return f.handle.ID() }
func (f *Frame) Function() string    { return f.function }
func (f *Frame) Location() Location  { return f.loc }
func (f *Frame) Locals() *Scope      { return f.locals }
func (f *Frame) Arguments() *Scope   { return f.arguments }
func (f *Frame) Registers() *Scope   { return f.registers }

// onStop is invoked synchronously, with no Thread lock held, whenever a
// Thread transitions into Paused -- the Server wires this to emit the DAP
// "stopped" event.
type onStopFunc func(t *Thread, reason StopReason)

// Thread is the spec §3/§4.7 execution-control actor: a cooperative state
// machine rendezvousing the instrumented goroutine (Enter/Exit/Update)
// with client commands (Pause/Resume/Step) across a mutex + condition
// variable, per Design Notes §9.
type Thread struct {
	handle Handle
	model  *Model
	log    *logrus.Entry

	mu           sync.Mutex
	cond         *sync.Cond
	name         string
	stack        []*Frame
	state        State
	pauseAtFrame *Frame
	stepKind     StepKind

	onStop onStopFunc
}

func newThread(h Handle, name string, m *Model, onStop onStopFunc) *Thread {
	t := &Thread{handle: h, name: name, model: m, onStop: onStop, log: logflags.ThreadState()}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *Thread) ID() int { return t.handle.ID() }

func (t *Thread) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

func (t *Thread) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stack returns a bottom-first snapshot of the call stack.
func (t *Thread) Stack() []*Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Frame, len(t.stack))
	copy(out, t.stack)
	return out
}

// topLocked returns the current top-of-stack Frame, or nil if empty.
func (t *Thread) topLocked() *Frame {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// Enter pushes a new Frame for a function call, testing the
// function-breakpoint set; on a match the thread transitions to Paused
// before returning, per spec §4.7.
func (t *Thread) Enter(file *File, function string, line int) *Frame {
	frame := t.model.newFrame(file, function, line)
	hit := t.model.hasFunctionBreakpoint(function)

	t.mu.Lock()
	t.stack = append(t.stack, frame)
	t.mu.Unlock()

	if hit {
		t.transitionToPaused(ReasonBreakpoint)
	}
	t.log.WithField("thread", t.ID()).WithField("function", function).Debug("enter")
	return frame
}

// Exit pops the top Frame and drops it from the model: per spec §3's
// ownership contract, once a frame is popped its id (and its scopes' and
// variable containers' ids) must stop resolving through
// Model.Frame/Scope/VariableContainer, the same way the popped frame's
// last strong reference going away invalidates those lookups.
func (t *Thread) Exit() {
	t.mu.Lock()
	var popped *Frame
	if len(t.stack) > 0 {
		popped = t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
	}
	t.mu.Unlock()

	if popped != nil {
		t.model.DropFrame(popped)
		t.log.WithField("thread", t.ID()).Debug("exit")
	}
}

// Update is called by the instrumented runtime on every source-location
// change. It records the location into the current frame, applies the
// breakpoint test, and blocks the calling goroutine while Paused --
// including when a step reaches its stop condition. A step that has not
// yet reached its stop condition returns without blocking.
func (t *Thread) Update(line int) {
	if t.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		t.log.WithField("thread", t.ID()).WithField("line", line).Debug("update")
	}

	t.mu.Lock()
	top := t.topLocked()
	var file *File
	if top != nil {
		top.loc.Line = line
		file = top.loc.File
	}
	t.mu.Unlock()

	// The breakpoint test takes File.mu, so it runs with Thread.mu released.
	hitBreakpoint := file != nil && file.HasBreakpoint(line)

	t.mu.Lock()
	stopReason := StopReason("")
	switch t.state {
	case Running:
		if hitBreakpoint {
			t.state = Paused
			stopReason = ReasonBreakpoint
		}
	case Stepping:
		if t.pauseAtFrame == nil || t.pauseAtFrame == top {
			t.state = Paused
			t.pauseAtFrame = nil
			stopReason = ReasonStep
		}
	case Paused:
		// already blocked below
	}
	shouldBlock := t.state == Paused
	t.mu.Unlock()

	if stopReason != "" && t.onStop != nil {
		t.onStop(t, stopReason)
	}

	if shouldBlock {
		t.mu.Lock()
		for t.state == Paused {
			t.cond.Wait()
		}
		t.mu.Unlock()
	}
}

// transitionToPaused moves the thread to Paused and fires onStop; it does
// not itself block -- the blocking happens the next time Update observes
// Paused, matching Enter's "emits before the first update in that frame"
// contract.
func (t *Thread) transitionToPaused(reason StopReason) {
	t.mu.Lock()
	t.state = Paused
	t.mu.Unlock()
	if t.onStop != nil {
		t.onStop(t, reason)
	}
}

// Pause transitions a Running or Stepping thread to Paused and emits a
// "pause" stop naming this thread, per spec §4.7/§4.8.
func (t *Thread) Pause() {
	if t.PauseSilently() && t.onStop != nil {
		t.onStop(t, ReasonPause)
	}
}

// PauseSilently transitions to Paused without firing onStop, returning
// whether a transition actually happened. It exists for the "pause all
// threads" path (handlers.go), which pauses every thread but emits a
// single aggregate stopped event rather than one per thread.
func (t *Thread) PauseSilently() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	already := t.state == Paused
	t.state = Paused
	if !already {
		t.log.WithField("thread", t.ID()).Debug("paused")
	}
	return !already
}

// Resume transitions a Paused thread back to Running and wakes its
// blocked goroutine.
func (t *Thread) Resume() {
	t.mu.Lock()
	t.state = Running
	t.pauseAtFrame = nil
	t.cond.Broadcast()
	t.mu.Unlock()
	t.log.WithField("thread", t.ID()).Debug("resumed")
}

// Step transitions to Stepping with the pauseAtFrame computed per the
// kind: stepIn has no target frame, stepOver targets the current top
// frame, stepOut targets the caller's frame (or none if there is only
// one frame).
func (t *Thread) Step(kind StepKind) {
	t.mu.Lock()
	t.stepKind = kind
	top := t.topLocked()
	switch kind {
	case StepIn:
		t.pauseAtFrame = nil
	case StepOver:
		t.pauseAtFrame = top
	case StepOut:
		if len(t.stack) >= 2 {
			t.pauseAtFrame = t.stack[len(t.stack)-2]
		} else {
			t.pauseAtFrame = nil
		}
	}
	t.state = Stepping
	t.cond.Broadcast()
	t.mu.Unlock()
}
