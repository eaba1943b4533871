// Package networktables provides the key/value tables through which the vision coprocessors
// publish results and through which the robot publishes commands and telemetry.
package networktables

import (
	"reflect"
	"sort"
	"sync"

	"github.com/spf13/cast"
)

// A Table is a named, flat key/value namespace. Reads never block and never fail: a missing key or
// a value of the wrong type yields the supplied default.
type Table interface {
	Name() string
	Has(key string) bool
	Number(key string, def float64) float64
	Bool(key string, def bool) bool
	String(key string, def string) string
	NumberArray(key string) []float64
	StringArray(key string) []string
	Put(key string, value interface{})
	Delete(key string)
	Keys() []string
}

// MemTable is a goroutine safe in-memory Table.
type MemTable struct {
	name string

	mu     sync.RWMutex
	values map[string]interface{}
}

// NewMemTable returns an empty table.
func NewMemTable(name string) *MemTable {
	return &MemTable{name: name, values: map[string]interface{}{}}
}

// Name returns the table name.
func (t *MemTable) Name() string {
	return t.name
}

func (t *MemTable) get(key string) (interface{}, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[key]
	return v, ok
}

// Has returns whether a value is published under key.
func (t *MemTable) Has(key string) bool {
	_, ok := t.get(key)
	return ok
}

// Number reads a numeric entry. Booleans read as 0 or 1.
func (t *MemTable) Number(key string, def float64) float64 {
	v, ok := t.get(key)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// Bool reads a boolean entry. Numbers read as true when non-zero.
func (t *MemTable) Bool(key string, def bool) bool {
	v, ok := t.get(key)
	if !ok {
		return def
	}
	switch v.(type) {
	case bool, string:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return def
		}
		return b
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f != 0
}

// String reads a string entry.
func (t *MemTable) String(key, def string) string {
	v, ok := t.get(key)
	if !ok {
		return def
	}
	if _, isSlice := v.([]interface{}); isSlice {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

// NumberArray reads a numeric array entry. It returns nil when absent or when any element is not
// numeric, and a fresh copy otherwise.
func (t *MemTable) NumberArray(key string) []float64 {
	v, ok := t.get(key)
	if !ok {
		return nil
	}
	elems, ok := toInterfaceSlice(v)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(elems))
	for _, e := range elems {
		f, err := cast.ToFloat64E(e)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}

// StringArray reads a string array entry with the same rules as NumberArray.
func (t *MemTable) StringArray(key string) []string {
	v, ok := t.get(key)
	if !ok {
		return nil
	}
	elems, ok := toInterfaceSlice(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		s, err := cast.ToStringE(e)
		if err != nil {
			return nil
		}
		out = append(out, s)
	}
	return out
}

// Put publishes a value. Slices are copied so later mutation by the caller is not observed.
func (t *MemTable) Put(key string, value interface{}) {
	if elems, ok := toInterfaceSlice(value); ok {
		value = elems
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[key] = value
}

// Delete removes an entry.
func (t *MemTable) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.values, key)
}

// Keys returns the published keys in sorted order.
func (t *MemTable) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copies any slice or array into a new []interface{}. Strings and byte slices are not arrays.
func toInterfaceSlice(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
