package frontmatter

import (
	"fmt"
	"slices"
	"sort"

	"github.com/starford/vaultexport/internal/apperr"
)

// Map is a string-keyed frontmatter block. Keys are unique. Insertion order
// is kept so rendered output is stable; it has no other meaning.
//
// A nil *Map behaves as an empty, read-only map.
type Map struct {
	keys []string
	vals map[string]Value
}

// New returns an empty map.
func New() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores v under key. Overwriting an existing key keeps its position.
func (m *Map) Set(key string, v Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.vals[key]; !ok {
		return false
	}
	delete(m.vals, key)
	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	return true
}

// RequireString returns the string stored under key. It fails with
// apperr.ErrMissingFrontmatterKey when the key is absent and with
// apperr.ErrInvalidFrontmatterValue when it holds another kind.
func (m *Map) RequireString(key string) (string, error) {
	v, ok := m.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", apperr.ErrMissingFrontmatterKey, key)
	}
	s, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("%w: %q is %s, want string", apperr.ErrInvalidFrontmatterValue, key, v.Kind())
	}
	return s, nil
}

// StringSet collects the string elements of the sequence stored under key.
// Anything else, including non-string elements, contributes nothing.
func (m *Map) StringSet(key string) map[string]struct{} {
	out := make(map[string]struct{})
	v, ok := m.Get(key)
	if !ok {
		return out
	}
	seq, ok := v.AsSequence()
	if !ok {
		return out
	}
	for _, e := range seq {
		if s, ok := e.AsString(); ok {
			out[s] = struct{}{}
		}
	}
	return out
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	out := New()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.vals[k].Clone())
	}
	return out
}

// Equal reports whether both maps hold equal values under the same keys.
// Key order is ignored.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, k := range m.Keys() {
		ov, ok := o.Get(k)
		if !ok {
			return false
		}
		mv, _ := m.Get(k)
		if !mv.Equal(ov) {
			return false
		}
	}
	return true
}

// ToAny converts m into a map[string]any.
func (m *Map) ToAny() map[string]any {
	out := make(map[string]any, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = v.Any()
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
