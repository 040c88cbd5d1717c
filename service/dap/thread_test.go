package dap

import (
	"testing"
	"time"
)

func newTestModel() *Model {
	return NewModel(nil)
}

func TestThread_EnterExitStack(t *testing.T) {
	m := newTestModel()
	th := m.CreateThread("t1")
	f := th.Enter(nil, "main.f", 10)
	if len(th.Stack()) != 1 || th.Stack()[0] != f {
		t.Fatalf("expected one-frame stack containing f, got %v", th.Stack())
	}
	th.Exit()
	if len(th.Stack()) != 0 {
		t.Fatalf("expected empty stack after Exit, got %v", th.Stack())
	}
}

func TestThread_UpdateBlocksWhilePaused(t *testing.T) {
	m := newTestModel()
	th := m.CreateThread("t1")
	th.Enter(nil, "main.f", 1)
	th.PauseSilently()

	done := make(chan struct{})
	go func() {
		th.Update(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Update returned while thread was Paused")
	case <-time.After(50 * time.Millisecond):
	}

	th.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Update did not unblock after Resume")
	}
}

func TestThread_PauseFiresOnStopOnce(t *testing.T) {
	m := newTestModel()
	var reasons []StopReason
	m.onStop = func(th *Thread, reason StopReason) {
		reasons = append(reasons, reason)
	}
	th := m.CreateThread("t1")
	th.Pause()
	th.Pause() // already paused: must not fire again

	if len(reasons) != 1 || reasons[0] != ReasonPause {
		t.Fatalf("got %v, want exactly one ReasonPause", reasons)
	}
}

func TestThread_PauseSilentlyNeverFiresOnStop(t *testing.T) {
	m := newTestModel()
	fired := false
	m.onStop = func(th *Thread, reason StopReason) { fired = true }
	th := m.CreateThread("t1")
	th.PauseSilently()
	if fired {
		t.Fatal("PauseSilently must never invoke onStop")
	}
}

func TestThread_StepOverStopsOnNextLineInSameFrame(t *testing.T) {
	m := newTestModel()
	th := m.CreateThread("t1")
	th.Enter(nil, "main.f", 1)
	th.Step(StepOver)

	done := make(chan struct{})
	go func() {
		th.Update(2) // next line within the same (target) frame: must stop and block
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Update returned without blocking; stepOver should pause on reaching the target frame")
	case <-time.After(50 * time.Millisecond):
	}
	if th.State() != Paused {
		t.Fatalf("expected Paused, got %v", th.State())
	}
	th.Resume()
	<-done
	if th.State() != Running {
		t.Fatalf("expected Running after Resume, got %v", th.State())
	}
}

func TestThread_StepOutWithSingleFrameHasNoTarget(t *testing.T) {
	m := newTestModel()
	th := m.CreateThread("t1")
	th.Enter(nil, "main.f", 1)
	th.Step(StepOut)
	th.mu.Lock()
	target := th.pauseAtFrame
	th.mu.Unlock()
	if target != nil {
		t.Fatalf("expected nil pauseAtFrame for stepOut with one frame, got %v", target)
	}
}

func TestThread_StepOutTargetsCallerFrame(t *testing.T) {
	m := newTestModel()
	th := m.CreateThread("t1")
	caller := th.Enter(nil, "main.caller", 1)
	th.Enter(nil, "main.callee", 1)
	th.Step(StepOut)
	th.mu.Lock()
	target := th.pauseAtFrame
	th.mu.Unlock()
	if target != caller {
		t.Fatalf("expected pauseAtFrame to be the caller's frame")
	}
}
