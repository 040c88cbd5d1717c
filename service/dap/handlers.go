package dap

import (
	"strings"

	"github.com/google/go-dap"
)

// RegisterDefaultHandlers installs every command handler mandated by
// spec §4.8 into r.
func RegisterDefaultHandlers(r *HandlerRegistry) {
	r.Register("initialize", dap.InitializeRequestArguments{}, onInitialize)
	r.Register("configurationDone", nil, onConfigurationDone)
	r.Register("launch", nil, onLaunch)
	r.Register("disconnect", nil, onDisconnect)
	r.Register("setExceptionBreakpoints", nil, onSetExceptionBreakpoints)
	r.Register("setFunctionBreakpoints", dap.SetFunctionBreakpointsArguments{}, onSetFunctionBreakpoints)
	r.Register("setBreakpoints", dap.SetBreakpointsArguments{}, onSetBreakpoints)
	r.Register("threads", nil, onThreads)
	r.Register("stackTrace", dap.StackTraceArguments{}, onStackTrace)
	r.Register("scopes", dap.ScopesArguments{}, onScopes)
	r.Register("variables", dap.VariablesArguments{}, onVariables)
	r.Register("source", dap.SourceArguments{}, onSource)
	r.Register("pause", dap.PauseArguments{}, onPause)
	r.Register("continue", dap.ContinueArguments{}, onContinue)
	r.Register("next", dap.NextArguments{}, onNext)
	r.Register("stepIn", dap.StepInArguments{}, onStepIn)
	r.Register("stepOut", dap.StepOutArguments{}, onStepOut)
	r.Register("evaluate", dap.EvaluateArguments{}, onEvaluate)

	r.RegisterResponseSent("initialize", func(c *Connection) {
		c.SendEvent("initialized", nil)
	})
}

// visualStudioName applies the Visual Studio client quirk of §6: every '.' in a
// thread or virtual-file name becomes '_', activated only when this
// connection's clientID was "visualstudio".
func (c *Connection) visualStudioName(name string) string {
	if !c.isVisualStudio {
		return name
	}
	return strings.ReplaceAll(name, ".", "_")
}

func onInitialize(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.InitializeRequestArguments)
	c.isVisualStudio = a.ClientID == "visualstudio"

	return dap.Capabilities{
		SupportsFunctionBreakpoints:      true,
		SupportsConfigurationDoneRequest: true,
	}, nil
}

func onConfigurationDone(c *Connection, args interface{}) (interface{}, *Error) {
	c.configDoneOnce.Do(func() { close(c.configDone) })
	c.server.markConfigured()
	return struct{}{}, nil
}

func onLaunch(c *Connection, args interface{}) (interface{}, *Error) {
	return struct{}{}, nil
}

func onDisconnect(c *Connection, args interface{}) (interface{}, *Error) {
	return struct{}{}, nil
}

func onSetExceptionBreakpoints(c *Connection, args interface{}) (interface{}, *Error) {
	return struct{}{}, nil
}

func onSetFunctionBreakpoints(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.SetFunctionBreakpointsArguments)
	names := make([]string, len(a.Breakpoints))
	for i, bp := range a.Breakpoints {
		names[i] = bp.Name
	}
	c.Model.SetFunctionBreakpoints(names)

	out := make([]dap.Breakpoint, len(a.Breakpoints))
	for i := range a.Breakpoints {
		out[i] = dap.Breakpoint{Verified: true}
	}
	return dap.SetFunctionBreakpointsResponseBody{Breakpoints: out}, nil
}

func onSetBreakpoints(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.SetBreakpointsArguments)

	var file *File
	var ok bool
	if a.Source.SourceReference != 0 {
		file, ok = c.Model.Files.ByID(a.Source.SourceReference)
	}
	if !ok && a.Source.Path != "" {
		file, ok = c.Model.Files.ByPath(a.Source.Path)
	}
	if !ok && a.Source.Name != "" {
		file, ok = c.Model.Files.ByName(a.Source.Name)
	}

	out := make([]dap.Breakpoint, len(a.Breakpoints))
	if ok {
		file.ClearBreakpoints()
		for i, bp := range a.Breakpoints {
			file.AddBreakpoint(bp.Line)
			out[i] = dap.Breakpoint{Verified: true, Line: bp.Line, Source: &a.Source}
		}
	} else {
		if a.Source.Name != "" {
			lines := make([]int, len(a.Breakpoints))
			for i, bp := range a.Breakpoints {
				lines[i] = bp.Line
			}
			c.Model.Files.SetPending(a.Source.Name, lines)
		}
		for i, bp := range a.Breakpoints {
			out[i] = dap.Breakpoint{Verified: false, Line: bp.Line, Source: &a.Source}
		}
	}
	return dap.SetBreakpointsResponseBody{Breakpoints: out}, nil
}

func onThreads(c *Connection, args interface{}) (interface{}, *Error) {
	threads := c.Model.Threads()
	out := make([]dap.Thread, len(threads))
	for i, t := range threads {
		out[i] = dap.Thread{Id: t.ID(), Name: c.visualStudioName(t.Name())}
	}
	return dap.ThreadsResponseBody{Threads: out}, nil
}

func onStackTrace(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.StackTraceArguments)
	t, ok := c.Model.Thread(a.ThreadId)
	if !ok {
		return nil, newError(ErrThreadNotFound, "no thread with id %d", a.ThreadId)
	}
	stack := t.Stack()
	// internal order is bottom-of-stack first; wire order is top first.
	frames := make([]dap.StackFrame, len(stack))
	for i, f := range stack {
		loc := f.Location()
		src := dap.Source{}
		if loc.File != nil {
			src = sourceOf(loc.File)
			if loc.File.IsVirtual() {
				src.Name = c.visualStudioName(src.Name)
			}
		}
		frames[len(stack)-1-i] = dap.StackFrame{
			Id:     f.ID(),
			Name:   f.Function(),
			Line:   loc.Line,
			Column: 0,
			Source: &src,
		}
	}
	return dap.StackTraceResponseBody{StackFrames: frames, TotalFrames: len(frames)}, nil
}

func onScopes(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.ScopesArguments)
	f, ok := c.Model.Frame(a.FrameId)
	if !ok {
		return nil, newError(ErrFrameNotFound, "no frame with id %d", a.FrameId)
	}
	order := []*Scope{f.Locals(), f.Arguments(), f.Registers()}
	scopes := make([]dap.Scope, len(order))
	for i, s := range order {
		scopes[i] = dap.Scope{
			Name:               s.Name(),
			PresentationHint:   s.Name(),
			VariablesReference: s.Container().ID(),
		}
	}
	return dap.ScopesResponseBody{Scopes: scopes}, nil
}

func onVariables(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.VariablesArguments)
	container, ok := c.Model.VariableContainer(a.VariablesReference)
	if !ok {
		return nil, newError(ErrVariableNotFound, "no variable container with id %d", a.VariablesReference)
	}

	var out []dap.Variable
	remaining := a.Count
	limited := a.Count > 0
	container.Foreach(a.Start, func(name string, v Value) bool {
		childRef := 0
		if vc, isContainer := v.(*VariableContainer); isContainer {
			childRef = vc.ID()
		}
		out = append(out, dap.Variable{
			Name:               name,
			EvaluateName:       name,
			Type:               v.Type().String(),
			Value:              v.String(),
			VariablesReference: childRef,
		})
		if limited {
			remaining--
			return remaining > 0
		}
		return true
	})
	return dap.VariablesResponseBody{Variables: out}, nil
}

func onSource(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.SourceArguments)
	ref := a.SourceReference
	if ref == 0 {
		ref = a.Source.SourceReference
	}
	f, ok := c.Model.Files.ByID(ref)
	if !ok {
		return nil, newError(ErrFileNotFound, "no file with sourceReference %d", ref)
	}
	src, isVirtual := f.Source()
	if !isVirtual {
		return nil, newError(ErrNotVirtualFile, "file %q is not virtual", f.Name())
	}
	return dap.SourceResponseBody{Content: src}, nil
}

func onPause(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.PauseArguments)
	if t, ok := c.Model.Thread(a.ThreadId); ok {
		t.Pause()
		return struct{}{}, nil
	}

	var arbitrary int
	for _, t := range c.Model.Threads() {
		t.PauseSilently()
		if arbitrary == 0 {
			arbitrary = t.ID()
		}
	}
	c.SendEvent("stopped", dap.StoppedEventBody{
		Reason:            string(ReasonPause),
		ThreadId:          arbitrary,
		AllThreadsStopped: true,
	})
	return struct{}{}, nil
}

func onContinue(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.ContinueArguments)
	if t, ok := c.Model.Thread(a.ThreadId); ok {
		t.Resume()
		return dap.ContinueResponseBody{AllThreadsContinued: false}, nil
	}
	for _, t := range c.Model.Threads() {
		t.Resume()
	}
	return dap.ContinueResponseBody{AllThreadsContinued: true}, nil
}

func onNext(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.NextArguments)
	return stepHandler(c, a.ThreadId, StepOver)
}

func onStepIn(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.StepInArguments)
	return stepHandler(c, a.ThreadId, StepIn)
}

func onStepOut(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.StepOutArguments)
	return stepHandler(c, a.ThreadId, StepOut)
}

func stepHandler(c *Connection, threadId int, kind StepKind) (interface{}, *Error) {
	t, ok := c.Model.Thread(threadId)
	if !ok {
		return nil, newError(ErrThreadNotFound, "no thread with id %d", threadId)
	}
	t.Step(kind)
	return struct{}{}, nil
}

func onEvaluate(c *Connection, args interface{}) (interface{}, *Error) {
	a := args.(*dap.EvaluateArguments)
	f, ok := c.Model.Frame(a.FrameId)
	if !ok {
		return nil, newError(ErrFrameNotFound, "no frame with id %d", a.FrameId)
	}
	for _, scope := range []*Scope{f.Locals(), f.Arguments(), f.Registers()} {
		if v, found := scope.Container().Find(a.Expression); found {
			return dap.EvaluateResponseBody{Result: v.String(), Type: v.Type().String()}, nil
		}
	}
	return nil, newError(ErrEvaluateFailed, "could not find %q", a.Expression)
}

// sourceOf renders a File as a dap.Source per spec §6: physical files
// report a path, virtual files report a sourceReference.
func sourceOf(f *File) dap.Source {
	if f.IsVirtual() {
		return dap.Source{Name: f.Name(), SourceReference: f.ID()}
	}
	return dap.Source{Name: f.Name(), Path: f.Path()}
}

// stoppedBody builds the "stopped" event body for a single-thread stop.
func stoppedBody(t *Thread, reason StopReason, allThreads bool) dap.StoppedEventBody {
	return dap.StoppedEventBody{
		Reason:            string(reason),
		ThreadId:          t.ID(),
		AllThreadsStopped: allThreads,
	}
}
