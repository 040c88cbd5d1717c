package dap

import "sync"

// Model is the debugger object model of spec §3: the FileTable plus the
// Thread/Frame/Scope/VariableContainer stores, and the function-name
// breakpoint set shared by every thread's Enter. One Model exists per
// Connection (the spec's "session").
type Model struct {
	Files *FileTable

	threads            *Store
	frames             *Store
	scopes             *Store
	variableContainers *Store

	mu                 sync.Mutex
	functionBreakpoints map[string]struct{}
	byOSThreadKey       map[string]*Thread

	onStop       onStopFunc
	onThreadStart func(t *Thread)
}

// NewModel constructs an empty object model. onStop is invoked whenever
// any Thread created through this model transitions to Paused, except
// through Thread.PauseSilently.
func NewModel(onStop onStopFunc) *Model {
	return &Model{
		Files:               NewFileTable(),
		threads:             NewStore(32),
		frames:              NewStore(32),
		scopes:              NewStore(32),
		variableContainers:  NewStore(32),
		functionBreakpoints: make(map[string]struct{}),
		byOSThreadKey:       make(map[string]*Thread),
		onStop:              onStop,
	}
}

// CurrentThread returns the Thread registered under osThreadKey (an
// opaque identifier the instrumented runtime uses to name its own
// current OS thread), lazily creating it and emitting a "thread started"
// event on first call, per spec §6.
func (m *Model) CurrentThread(osThreadKey, name string) *Thread {
	m.mu.Lock()
	if t, ok := m.byOSThreadKey[osThreadKey]; ok {
		m.mu.Unlock()
		return t
	}
	m.mu.Unlock()

	t := m.CreateThread(name)

	m.mu.Lock()
	m.byOSThreadKey[osThreadKey] = t
	m.mu.Unlock()

	if m.onThreadStart != nil {
		m.onThreadStart(t)
	}
	return t
}

// CreateThread registers a new Thread with the given name.
func (m *Model) CreateThread(name string) *Thread {
	t := newThread(Handle{}, name, m, m.onStop)
	t.handle = m.threads.Add(t)
	return t
}

// Thread resolves a Thread by its wire ID.
func (m *Model) Thread(id int) (*Thread, bool) {
	obj, ok := m.threads.GetByID(id)
	if !ok {
		return nil, false
	}
	return obj.(*Thread), true
}

// Threads returns every live Thread.
func (m *Model) Threads() []*Thread {
	var out []*Thread
	m.threads.Iterate(func(_ Handle, obj interface{}) {
		out = append(out, obj.(*Thread))
	})
	return out
}

// DropThread removes a Thread from the store (e.g. when the instrumented
// runtime reports an OS thread has exited).
func (m *Model) DropThread(t *Thread) {
	m.threads.Drop(t.handle)
}

// CreateVariableContainer allocates an empty, independently addressable
// VariableContainer.
func (m *Model) CreateVariableContainer() *VariableContainer {
	c := newVariableContainer(Handle{})
	c.handle = m.variableContainers.Add(c)
	return c
}

// VariableContainer resolves a container by its wire ID.
func (m *Model) VariableContainer(id int) (*VariableContainer, bool) {
	obj, ok := m.variableContainers.GetByID(id)
	if !ok {
		return nil, false
	}
	return obj.(*VariableContainer), true
}

// Frame resolves a Frame by its wire ID.
func (m *Model) Frame(id int) (*Frame, bool) {
	obj, ok := m.frames.GetByID(id)
	if !ok {
		return nil, false
	}
	return obj.(*Frame), true
}

// Scope resolves a Scope by its wire ID.
func (m *Model) Scope(id int) (*Scope, bool) {
	obj, ok := m.scopes.GetByID(id)
	if !ok {
		return nil, false
	}
	return obj.(*Scope), true
}

// newFrame builds a Frame with its three scopes, registering all four
// objects in the model's stores.
func (m *Model) newFrame(file *File, function string, line int) *Frame {
	frame := &Frame{function: function, loc: Location{File: file, Line: line}}
	frame.handle = m.frames.Add(frame)

	frame.locals = m.newScope("locals")
	frame.arguments = m.newScope("arguments")
	frame.registers = m.newScope("registers")
	return frame
}

func (m *Model) newScope(name string) *Scope {
	s := &Scope{name: name, container: m.CreateVariableContainer()}
	s.handle = m.scopes.Add(s)
	return s
}

// DropFrame removes f and its three Scopes/VariableContainers from their
// Stores, so every one of their wire IDs stops resolving -- the model-side
// half of a Thread popping that frame off its stack on function exit.
func (m *Model) DropFrame(f *Frame) {
	for _, s := range []*Scope{f.locals, f.arguments, f.registers} {
		m.variableContainers.Drop(s.container.handle)
		m.scopes.Drop(s.handle)
	}
	m.frames.Drop(f.handle)
}

// SetFunctionBreakpoints replaces the function-name breakpoint set.
func (m *Model) SetFunctionBreakpoints(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.functionBreakpoints = make(map[string]struct{}, len(names))
	for _, n := range names {
		m.functionBreakpoints[n] = struct{}{}
	}
}

func (m *Model) hasFunctionBreakpoint(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.functionBreakpoints[name]
	return ok
}
