package dap

import (
	"fmt"
	"sync"
)

// Kind tags the shape of a Type/Value, per spec §3. The display strings
// for types and values are produced by Type.String and Primitive.String
// below.
type Kind int

const (
	KindBool Kind = iota
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindPtr
	KindVariableContainer
)

// Type is {Kind, optional element Type for Ptr}.
type Type struct {
	Kind Kind
	Elem *Type
}

func (t Type) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindI8:
		return "int8"
	case KindU8:
		return "uint8"
	case KindI16:
		return "int16"
	case KindU16:
		return "uint16"
	case KindI32:
		return "int32"
	case KindU32:
		return "uint32"
	case KindI64:
		return "int64"
	case KindU64:
		return "uint64"
	case KindF32:
		return "float"
	case KindF64:
		return "double"
	case KindPtr:
		if t.Elem != nil {
			return t.Elem.String() + "*"
		}
		return "pointer"
	case KindVariableContainer:
		return "struct"
	default:
		return "unknown"
	}
}

// Value is the spec's polymorphic value: query its type and produce a
// display string. It exposes no raw-bytes access and no way to set a new
// value. A VariableContainer is itself a Value so nested structures
// expose a child variablesReference.
type Value interface {
	Type() Type
	String() string
}

// Primitive is a constant-valued leaf Value: bools, the sized integer
// family, the two float widths, and pointers.
type Primitive struct {
	typ  Type
	bits uint64 // bit pattern for ints/pointers/bools
	f    float64
}

func NewBool(v bool) Primitive {
	var b uint64
	if v {
		b = 1
	}
	return Primitive{typ: Type{Kind: KindBool}, bits: b}
}

func NewInt(kind Kind, v int64) Primitive {
	return Primitive{typ: Type{Kind: kind}, bits: uint64(v)}
}

func NewUint(kind Kind, v uint64) Primitive {
	return Primitive{typ: Type{Kind: kind}, bits: v}
}

func NewFloat32(v float32) Primitive {
	return Primitive{typ: Type{Kind: KindF32}, f: float64(v)}
}

func NewFloat64(v float64) Primitive {
	return Primitive{typ: Type{Kind: KindF64}, f: v}
}

func NewPointer(elem Type, addr uint64) Primitive {
	e := elem
	return Primitive{typ: Type{Kind: KindPtr, Elem: &e}, bits: addr}
}

func (p Primitive) Type() Type { return p.typ }

func (p Primitive) String() string {
	switch p.typ.Kind {
	case KindBool:
		return fmt.Sprintf("%t", p.bits != 0)
	case KindI8:
		return fmt.Sprintf("%d", int8(p.bits))
	case KindU8:
		return fmt.Sprintf("%d", uint8(p.bits))
	case KindI16:
		return fmt.Sprintf("%d", int16(p.bits))
	case KindU16:
		return fmt.Sprintf("%d", uint16(p.bits))
	case KindI32:
		return fmt.Sprintf("%d", int32(p.bits))
	case KindU32:
		return fmt.Sprintf("%d", uint32(p.bits))
	case KindI64:
		return fmt.Sprintf("%d", int64(p.bits))
	case KindU64:
		return fmt.Sprintf("%d", p.bits)
	case KindF32:
		return fmt.Sprintf("%f", p.f)
	case KindF64:
		return fmt.Sprintf("%f", p.f)
	case KindPtr:
		return fmt.Sprintf("0x%x", p.bits)
	default:
		return ""
	}
}

// entry is one (name, Value) pair in a VariableContainer, in display
// order.
type entry struct {
	name  string
	value Value
}

// VariableContainer is an ordered (name, Value) sequence backing one
// variablesReference, per spec §3/§4.8. It is itself a Value so nested
// containers expose a child reference.
type VariableContainer struct {
	handle Handle

	mu      sync.Mutex
	entries []entry
	index   map[string]int
}

func newVariableContainer(h Handle) *VariableContainer {
	return &VariableContainer{handle: h, index: make(map[string]int)}
}

func (c *VariableContainer) ID() int { return c.handle.ID() }

func (c *VariableContainer) Type() Type { return Type{Kind: KindVariableContainer} }

func (c *VariableContainer) String() string {
	return fmt.Sprintf("{%d fields}", c.Len())
}

// Put is upsert by name: an existing name replaces the value in place
// (index unchanged); a new name appends to the tail.
func (c *VariableContainer) Put(name string, v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[name]; ok {
		c.entries[i].value = v
		return
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, entry{name: name, value: v})
}

// Find returns the first (only) entry matching name.
func (c *VariableContainer) Find(name string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.entries[i].value, true
}

// Foreach iterates entries from startIndex to the end, calling f(name, v)
// for each; it stops early if f returns false.
func (c *VariableContainer) Foreach(startIndex int, f func(name string, v Value) bool) {
	c.mu.Lock()
	snapshot := append([]entry(nil), c.entries...)
	c.mu.Unlock()
	for i := startIndex; i < len(snapshot); i++ {
		if !f(snapshot[i].name, snapshot[i].value) {
			return
		}
	}
}

func (c *VariableContainer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
