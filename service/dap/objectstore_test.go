package dap

import "testing"

func TestStore_AddGet(t *testing.T) {
	s := NewStore(32)
	h := s.Add("hello")
	v, ok := s.Get(h)
	if !ok || v.(string) != "hello" {
		t.Fatalf("got (%v, %v), want (hello, true)", v, ok)
	}
}

func TestStore_GetByIDRoundTrip(t *testing.T) {
	s := NewStore(32)
	h := s.Add("world")
	v, ok := s.GetByID(h.ID())
	if !ok || v.(string) != "world" {
		t.Fatalf("got (%v, %v), want (world, true)", v, ok)
	}
}

func TestStore_DropInvalidatesHandle(t *testing.T) {
	s := NewStore(32)
	h := s.Add("x")
	s.Drop(h)
	if _, ok := s.Get(h); ok {
		t.Fatal("expected dropped handle to miss")
	}
}

func TestStore_DropThenAddReusesSlotWithNewGeneration(t *testing.T) {
	s := NewStore(32)
	h1 := s.Add("first")
	s.Drop(h1)
	h2 := s.Add("second")

	if h2.index != h1.index {
		t.Fatalf("expected slot reuse at same index, got %d vs %d", h2.index, h1.index)
	}
	if _, ok := s.Get(h1); ok {
		t.Fatal("old handle must not resolve to the new occupant")
	}
	v, ok := s.Get(h2)
	if !ok || v.(string) != "second" {
		t.Fatalf("got (%v, %v), want (second, true)", v, ok)
	}
}

func TestStore_ReapPreservesLiveIndices(t *testing.T) {
	s := NewStore(2)
	h1 := s.Add("a")
	h2 := s.Add("b")
	h3 := s.Add("c")
	s.Drop(h2)

	// d refills b's slot without a reap (live count 2 does not exceed the
	// threshold 2); e's Add then sees 3 live slots, crosses the threshold
	// and triggers a reap.
	h4 := s.Add("d")
	h5 := s.Add("e")

	for _, h := range []Handle{h1, h3, h4, h5} {
		if _, ok := s.Get(h); !ok {
			t.Fatalf("live handle %+v lost its slot after reap", h)
		}
	}
	if _, ok := s.Get(h2); ok {
		t.Fatal("dropped handle resurrected by reap")
	}
}

func TestStore_IterateSkipsDeadSlots(t *testing.T) {
	s := NewStore(32)
	h1 := s.Add("alive")
	h2 := s.Add("dead")
	s.Drop(h2)

	var seen []interface{}
	s.Iterate(func(h Handle, obj interface{}) {
		seen = append(seen, obj)
	})
	if len(seen) != 1 || seen[0].(string) != "alive" {
		t.Fatalf("got %v, want exactly [alive]", seen)
	}
	_ = h1
}

func TestStore_GetOutOfRangeMisses(t *testing.T) {
	s := NewStore(32)
	if _, ok := s.GetByID(999); ok {
		t.Fatal("expected out-of-range ID to miss")
	}
}
