package wire

// Serializer and Deserializer are field/array/optional visitor helpers
// over a Tree, mirroring cppdap's json_serializer.h Reader/Writer pair.
// Struct descriptors (registry.go) do not use them and go straight through
// reflection + encoding/json, since Go's struct tags already are the
// derive-based serializer Design Notes call for; no descriptor in this
// module is built on these helpers.

// Serializer writes primitives and composite shapes into a Tree field.
type Serializer struct {
	Into Tree
}

func (s *Serializer) Field(name string, v interface{}) {
	s.Into[name] = v
}

// Optional writes the field only if present is true; when false, any
// existing key is removed, matching the spec's "absent optionals cause
// the field to be removed from the parent object" rule.
func (s *Serializer) Optional(name string, present bool, v interface{}) {
	if !present {
		delete(s.Into, name)
		return
	}
	s.Into[name] = v
}

func (s *Serializer) Array(name string, n int, elem func(i int) interface{}) {
	arr := make([]interface{}, n)
	for i := 0; i < n; i++ {
		arr[i] = elem(i)
	}
	s.Into[name] = arr
}

// Deserializer reads primitives and composite shapes out of a Tree.
type Deserializer struct {
	From Tree
}

func (d *Deserializer) Field(name string) (interface{}, bool) {
	v, ok := d.From[name]
	return v, ok
}

func (d *Deserializer) Array(name string) ([]interface{}, bool) {
	v, ok := d.From[name]
	if !ok {
		return nil, false
	}
	arr, ok := v.([]interface{})
	return arr, ok
}

func (d *Deserializer) String(name string) (string, bool) {
	v, ok := d.From[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (d *Deserializer) Int(name string) (int64, bool) {
	v, ok := d.From[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func (d *Deserializer) Float(name string) (float64, bool) {
	v, ok := d.From[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (d *Deserializer) Bool(name string) (bool, bool) {
	v, ok := d.From[name]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
