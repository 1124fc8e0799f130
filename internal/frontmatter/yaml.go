package frontmatter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a YAML document's top level is not a mapping.
var ErrNotMapping = errors.New("frontmatter: top level is not a mapping")

// ErrTooLarge is returned when alias expansion would produce more values
// than a frontmatter block can reasonably hold.
var ErrTooLarge = errors.New("frontmatter: document expands to too many values")

// Parse decodes a YAML document into a Map, preserving key order.
// An empty document yields an empty map.
func Parse(data []byte) (*Map, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("frontmatter: decode: %w", err)
	}
	return FromNode(&doc)
}

// FromNode converts a decoded YAML node into a Map.
func FromNode(n *yaml.Node) (*Map, error) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return New(), nil
		}
		n = n.Content[0]
	}
	switch {
	case n.Kind == 0:
		return New(), nil
	case n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null":
		return New(), nil
	case n.Kind != yaml.MappingNode:
		return nil, ErrNotMapping
	}
	w := &walker{budget: maxValues}
	v, err := w.value(n, 0)
	if err != nil {
		return nil, err
	}
	m, _ := v.AsMapping()
	return m, nil
}

const (
	// maxDepth bounds nesting, aliases included.
	maxDepth = 64
	// maxValues bounds the total number of values produced, counting every
	// copy an alias expands to.
	maxValues = 100_000
)

type walker struct {
	budget int
}

func (w *walker) value(n *yaml.Node, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("frontmatter: nesting deeper than %d", maxDepth)
	}
	w.budget--
	if w.budget < 0 {
		return Value{}, ErrTooLarge
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return w.value(n.Content[0], depth+1)
	case yaml.AliasNode:
		if n.Alias == nil {
			return Null(), nil
		}
		return w.value(n.Alias, depth+1)
	case yaml.ScalarNode:
		return scalarFromNode(n)
	case yaml.SequenceNode:
		seq := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := w.value(c, depth+1)
			if err != nil {
				return Value{}, err
			}
			seq = append(seq, v)
		}
		return Value{kind: KindSequence, seq: seq}, nil
	case yaml.MappingNode:
		m := New()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			val, err := w.value(v, depth+1)
			if err != nil {
				return Value{}, err
			}
			m.Set(k.Value, val)
		}
		return Mapping(m), nil
	}
	return Null(), nil
}

func scalarFromNode(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("frontmatter: line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("frontmatter: line %d: %w", n.Line, err)
		}
		return Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("frontmatter: line %d: %w", n.Line, err)
		}
		return Float(f), nil
	case "!!str":
		return String(n.Value), nil
	default:
		// Timestamps, binary and custom tags keep their text and tag.
		return Value{kind: KindString, s: n.Value, tag: n.ShortTag()}, nil
	}
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.node(), nil
}

// MarshalYAML implements yaml.Marshaler.
func (m *Map) MarshalYAML() (any, error) {
	return m.node(), nil
}

func (m *Map) node() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			v.node(),
		)
	}
	return n
}

func (v Value) node() *yaml.Node {
	switch v.kind {
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindNumber:
		if v.float {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(v.f)}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v.i, 10)}
	case KindString:
		tag := v.tag
		if tag == "" {
			tag = "!!str"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.s}
	case KindSequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v.seq {
			n.Content = append(n.Content, e.node())
		}
		return n
	case KindMapping:
		return v.m.node()
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Encode renders m as a YAML document. An empty map encodes to nil.
func Encode(m *Map) ([]byte, error) {
	if m.Len() == 0 {
		return nil, nil
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: encode: %w", err)
	}
	return out, nil
}
