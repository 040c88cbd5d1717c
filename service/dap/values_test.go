package dap

import "testing"

func TestPrimitive_IntRoundTrip(t *testing.T) {
	v := NewInt(KindI32, -42)
	if v.Type().String() != "int32" {
		t.Fatalf("got type %q, want int32", v.Type().String())
	}
	if got, want := v.String(), "-42"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPrimitive_PointerType(t *testing.T) {
	v := NewPointer(Type{Kind: KindI32}, 0xff00)
	if got, want := v.Type().String(), "int32*"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := v.String(), "0xff00"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestVariableContainer_PutAppendsNewNames(t *testing.T) {
	c := newVariableContainer(Handle{})
	c.Put("a", NewInt(KindI32, 1))
	c.Put("b", NewInt(KindI32, 2))

	var names []string
	c.Foreach(0, func(name string, v Value) bool {
		names = append(names, name)
		return true
	})
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("got %v, want [a b]", names)
	}
}

func TestVariableContainer_PutReplacesInPlace(t *testing.T) {
	c := newVariableContainer(Handle{})
	c.Put("a", NewInt(KindI32, 1))
	c.Put("b", NewInt(KindI32, 2))
	c.Put("a", NewInt(KindI32, 99))

	var names []string
	c.Foreach(0, func(name string, v Value) bool {
		names = append(names, name)
		return true
	})
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("replacing an existing name must not move it, got %v", names)
	}
	v, ok := c.Find("a")
	if !ok || v.String() != "99" {
		t.Fatalf("got (%v, %v), want (99, true)", v, ok)
	}
}

func TestVariableContainer_ForeachStartIndex(t *testing.T) {
	c := newVariableContainer(Handle{})
	c.Put("a", NewInt(KindI32, 1))
	c.Put("b", NewInt(KindI32, 2))
	c.Put("c", NewInt(KindI32, 3))

	var names []string
	c.Foreach(1, func(name string, v Value) bool {
		names = append(names, name)
		return true
	})
	if len(names) != 2 || names[0] != "b" || names[1] != "c" {
		t.Fatalf("got %v, want [b c]", names)
	}
}

func TestVariableContainer_ForeachStopsEarly(t *testing.T) {
	c := newVariableContainer(Handle{})
	c.Put("a", NewInt(KindI32, 1))
	c.Put("b", NewInt(KindI32, 2))
	c.Put("c", NewInt(KindI32, 3))

	var names []string
	c.Foreach(0, func(name string, v Value) bool {
		names = append(names, name)
		return name != "b"
	})
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("got %v, want [a b]", names)
	}
}

func TestVariableContainer_FindMissing(t *testing.T) {
	c := newVariableContainer(Handle{})
	if _, ok := c.Find("nope"); ok {
		t.Fatal("expected miss for unknown name")
	}
}
