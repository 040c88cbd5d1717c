package dap

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/swiftshader/dbgserver/pkg/logflags"
)

// Handle is a generation-tagged reference into a Store slot -- the Go
// substitute Design Notes §9 recommends for the source's shared+weak
// pointer pairs. A Handle obtained before a slot is reused (Drop, then a
// later Add into the freed slot) compares
// unequal in effect to any Handle minted afterwards, because Get checks
// the generation.
type Handle struct {
	index int
	gen   uint32
}

// ID is the dense, non-zero wire identifier derived from a Handle. The
// wire protocol only ever sees IDs, never Handles.
func (h Handle) ID() int {
	return h.index + 1
}

func handleFromID(id int) Handle {
	return Handle{index: id - 1}
}

type slot struct {
	gen   uint32
	alive bool
	value interface{}
}

// Store is a WeakMap[ID -> Object] for one object kind, per spec §4.6.
// Unlike a true weak map it does not rely on GC finalizers; liveness is
// tracked explicitly by Drop, and reap clears dead slots' payloads and
// trims any dead run at the tail once the live count has grown past its
// threshold, mirroring the size/threshold rule in the spec.
type Store struct {
	mu            sync.Mutex
	slots         []slot
	reapThreshold int
	log           *logrus.Entry
}

// NewStore creates an empty Store with the given initial reap threshold.
func NewStore(initialThreshold int) *Store {
	if initialThreshold <= 0 {
		initialThreshold = 32
	}
	return &Store{reapThreshold: initialThreshold, log: logflags.ObjectStore()}
}

// Add inserts obj and returns its Handle. When the live slot count exceeds
// reapThreshold, a reap pass runs first.
func (s *Store) Add(obj interface{}) Handle {
	if s.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		s.log.Debug("add")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveCountLocked() > s.reapThreshold {
		s.reapLocked()
	}
	for i := range s.slots {
		if !s.slots[i].alive {
			s.slots[i].alive = true
			s.slots[i].value = obj
			return Handle{index: i, gen: s.slots[i].gen}
		}
	}
	s.slots = append(s.slots, slot{gen: 0, alive: true, value: obj})
	return Handle{index: len(s.slots) - 1, gen: 0}
}

// Get returns the live object for h, or (nil, false) if its generation has
// been superseded by a Drop.
func (s *Store) Get(h Handle) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.index < 0 || h.index >= len(s.slots) {
		return nil, false
	}
	sl := s.slots[h.index]
	if !sl.alive || sl.gen != h.gen {
		return nil, false
	}
	return sl.value, true
}

// GetByID resolves a wire integer ID back to a live object. IDs carry no
// generation, so an ID resolves to whichever live object currently
// occupies its slot.
func (s *Store) GetByID(id int) (interface{}, bool) {
	h := handleFromID(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.index < 0 || h.index >= len(s.slots) || !s.slots[h.index].alive {
		return nil, false
	}
	return s.slots[h.index].value, true
}

// Drop marks h's slot dead and bumps its generation so any outstanding
// Handle with the old generation now misses.
func (s *Store) Drop(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.index < 0 || h.index >= len(s.slots) {
		return
	}
	sl := &s.slots[h.index]
	if sl.alive && sl.gen == h.gen {
		sl.alive = false
		sl.value = nil
		sl.gen++
	}
}

// Iterate yields every live object in index order, skipping dead slots.
func (s *Store) Iterate(f func(h Handle, obj interface{})) {
	s.mu.Lock()
	snapshot := make([]slot, len(s.slots))
	copy(snapshot, s.slots)
	s.mu.Unlock()
	for i, sl := range snapshot {
		if sl.alive {
			f(Handle{index: i, gen: sl.gen}, sl.value)
		}
	}
}

func (s *Store) liveCountLocked() int {
	n := 0
	for _, sl := range s.slots {
		if sl.alive {
			n++
		}
	}
	return n
}

// reapLocked frees memory held by dead slots and resets the threshold to
// 2*size+32, per spec §4.6. Live slots keep their original index -- a
// Handle's index must stay valid for the object's lifetime -- so reaping
// only clears dead payloads and truncates any dead run at the tail,
// rather than compacting the array.
func (s *Store) reapLocked() {
	for i := range s.slots {
		if !s.slots[i].alive {
			s.slots[i].value = nil
		}
	}
	n := len(s.slots)
	for n > 0 && !s.slots[n-1].alive {
		n--
	}
	s.slots = s.slots[:n]
	s.reapThreshold = 2*s.liveCountLocked() + 32
	s.log.WithField("live", s.liveCountLocked()).WithField("threshold", s.reapThreshold).Debug("reaped")
}
