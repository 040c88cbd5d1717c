// Package wire implements the generic JSON marshalling layer shared by the
// DAP connection: a type registry mapping Go types to serialization
// descriptors, and framing helpers for the Content-Length transport.
package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Descriptor is the type-erased marshalling contract for one registered
// type: construct a zero value, serialize it into a Tree, deserialize a
// Tree into it. There is no separate copy/destroy pair here -- Go's garbage
// collector and value semantics make both implicit, unlike the untyped
// construct/copy/destroy trio the source language needs.
type Descriptor struct {
	Name  string
	Type  reflect.Type
	Serialize   func(v interface{}) (Tree, error)
	Deserialize func(t Tree, out interface{}) error
}

// Tree is the JSON tree value the core treats as an external collaborator
// (spec's assumed boolean/integer/number/string/array/object value).
type Tree = map[string]interface{}

// Registry is a mapping from a type to its Descriptor, the Go analogue of
// the source's per-type function-object table. Each NewRegistry call
// creates an independent table.
type Registry struct {
	mu    sync.RWMutex
	byType map[reflect.Type]*Descriptor
	byName map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Descriptor),
		byName: make(map[string]*Descriptor),
	}
}

// Register builds and installs a struct Descriptor for the given zero
// value using its Go type's json struct tags as the field list -- the
// derive-based struct serializer Design Notes recommend in lieu of a
// hand-written offset table.
func (r *Registry) Register(name string, zero interface{}) *Descriptor {
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	d := &Descriptor{
		Name: name,
		Type: t,
		Serialize:   structSerializer(t),
		Deserialize: structDeserializer(t),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[t] = d
	r.byName[name] = d
	return d
}

// Lookup returns the descriptor registered under name, if any.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// DescriptorFor returns the Descriptor for v's underlying type, building
// and caching one (keyed by the type's own string form) on first use. It
// is the entry point dispatch uses for the open-ended set of argument and
// response-body types, where the caller only has a value in hand and
// hasn't pre-registered a name for it.
func (r *Registry) DescriptorFor(v interface{}) *Descriptor {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	d, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return d
	}
	return r.Register(t.String(), reflect.New(t).Elem().Interface())
}

// Construct allocates a new zero value of the named type's kind, returned
// as a pointer so callers can Deserialize directly into it.
func (d *Descriptor) Construct() interface{} {
	return reflect.New(d.Type).Interface()
}

func mustField(t reflect.Type, i int) (jsonName string, omitempty bool, ok bool) {
	f := t.Field(i)
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}
	name := f.Name
	opts := ""
	if tag != "" {
		parts := splitTag(tag)
		if parts[0] != "" {
			name = parts[0]
		}
		if len(parts) > 1 {
			opts = parts[1]
		}
	}
	return name, opts == "omitempty", true
}

func splitTag(tag string) []string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return []string{tag[:i], tag[i+1:]}
		}
	}
	return []string{tag}
}

func structSerializer(t reflect.Type) func(interface{}) (Tree, error) {
	return func(v interface{}) (Tree, error) {
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return Tree{}, nil
			}
			rv = rv.Elem()
		}
		if rv.Type() != t {
			return nil, fmt.Errorf("wire: serialize: expected %s, got %s", t, rv.Type())
		}
		out := Tree{}
		for i := 0; i < t.NumField(); i++ {
			name, omitempty, ok := mustField(t, i)
			if !ok {
				continue
			}
			fv := rv.Field(i)
			if omitempty && isEmptyValue(fv) {
				continue
			}
			out[name] = fv.Interface()
		}
		return out, nil
	}
}

func structDeserializer(t reflect.Type) func(Tree, interface{}) error {
	return func(tree Tree, out interface{}) error {
		rv := reflect.ValueOf(out)
		if rv.Kind() != reflect.Ptr {
			return fmt.Errorf("wire: deserialize: output must be a pointer")
		}
		rv = rv.Elem()
		for i := 0; i < t.NumField(); i++ {
			name, _, ok := mustField(t, i)
			if !ok {
				continue
			}
			raw, present := tree[name]
			if !present {
				continue
			}
			fv := rv.Field(i)
			if !fv.CanSet() {
				continue
			}
			if err := assign(fv, raw); err != nil {
				return fmt.Errorf("wire: field %q: %w", name, err)
			}
		}
		return nil
	}
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}

func assign(fv reflect.Value, raw interface{}) error {
	if raw == nil {
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	// raw came out of a generic JSON tree -- a map[string]interface{} or
	// []interface{} -- for any field whose Go type is itself a struct or a
	// slice of structs, neither reflect check above applies. Round-trip it
	// through encoding/json to land it in fv's concrete type; this covers
	// nested types (dap.Source, []dap.SourceBreakpoint, ...) without the
	// descriptor needing a recursive tree walker of its own.
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("cannot assign %s into %s: %v", rv.Type(), fv.Type(), err)
	}
	ptr := reflect.New(fv.Type())
	if err := json.Unmarshal(buf, ptr.Interface()); err != nil {
		return fmt.Errorf("cannot assign %s into %s: %v", rv.Type(), fv.Type(), err)
	}
	fv.Set(ptr.Elem())
	return nil
}
