package dap

import "testing"

func TestFileTable_CreateVirtualFile(t *testing.T) {
	ft := NewFileTable()
	f := ft.CreateVirtualFile("main.go", "package main")
	if !f.IsVirtual() {
		t.Fatal("expected virtual file")
	}
	src, ok := f.Source()
	if !ok || src != "package main" {
		t.Fatalf("got (%q, %v), want (package main, true)", src, ok)
	}
}

func TestFileTable_ByNameAndByID(t *testing.T) {
	ft := NewFileTable()
	f := ft.CreatePhysicalFile("a.go", "/src", "")
	if got, ok := ft.ByName("a.go"); !ok || got != f {
		t.Fatalf("ByName mismatch: %v, %v", got, ok)
	}
	if got, ok := ft.ByID(f.ID()); !ok || got != f {
		t.Fatalf("ByID mismatch: %v, %v", got, ok)
	}
	if got, ok := ft.ByPath("/src/a.go"); !ok || got != f {
		t.Fatalf("ByPath mismatch: %v, %v", got, ok)
	}
}

func TestFile_BreakpointIdempotent(t *testing.T) {
	ft := NewFileTable()
	f := ft.CreatePhysicalFile("a.go", "", "")
	f.AddBreakpoint(10)
	f.AddBreakpoint(10)
	if len(f.Breakpoints()) != 1 {
		t.Fatalf("got %d breakpoints, want 1", len(f.Breakpoints()))
	}
	if !f.HasBreakpoint(10) {
		t.Fatal("expected line 10 to have a breakpoint")
	}
	if f.HasBreakpoint(11) {
		t.Fatal("expected line 11 to have no breakpoint")
	}
}

func TestFile_ClearBreakpoints(t *testing.T) {
	ft := NewFileTable()
	f := ft.CreatePhysicalFile("a.go", "", "")
	f.AddBreakpoint(1)
	f.AddBreakpoint(2)
	f.ClearBreakpoints()
	if len(f.Breakpoints()) != 0 {
		t.Fatalf("expected no breakpoints after clear, got %v", f.Breakpoints())
	}
}

func TestFileTable_PendingBreakpointsAppliedOnRegistration(t *testing.T) {
	ft := NewFileTable()
	ft.SetPending("later.go", []int{3, 7})

	f := ft.CreatePhysicalFile("later.go", "", "")
	if !f.HasBreakpoint(3) || !f.HasBreakpoint(7) {
		t.Fatalf("got breakpoints %v, want [3 7]", f.Breakpoints())
	}
}

func TestFileTable_PhysicalFilePathWithoutDir(t *testing.T) {
	ft := NewFileTable()
	f := ft.CreatePhysicalFile("solo.go", "", "")
	if f.Path() != "solo.go" {
		t.Fatalf("got %q, want solo.go", f.Path())
	}
}
