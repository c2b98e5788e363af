package events

import (
	"bytes"
	"encoding/gob"
	"iter"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

func init() {
	gob.Register(&Map{})
	gob.Register([]*Map{})
	gob.Register([]any{})
	gob.Register([]string{})
	gob.Register(map[string]any{})
}

// Map is a string keyed mapping that remembers insertion order.
// It is the mapping representation every serializer works on.
type Map struct {
	keys   []string
	values map[string]any
}

func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Set stores value under key. Overwriting an existing key keeps its position.
func (m *Map) Set(key string, value any) *Map {
	if m.values == nil {
		m.values = make(map[string]any)
	}

	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value

	return m
}

func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Map) Delete(key string) {
	if !m.Has(key) {
		return
	}

	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}

	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}

	keys := make([]string, len(m.keys))
	copy(keys, m.keys)

	return keys
}

// All iterates over the entries in insertion order.
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if m == nil {
			return
		}

		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// ToMap makes a Map usable wherever a Mapper is expected.
func (m *Map) ToMap() *Map {
	return m
}

// MarshalJSONTo writes the entries as a JSON object in insertion order. Serializers walk
// maps themselves; this covers maps reached through values the JSON marshaller handles,
// e.g. a []*Map.
func (m *Map) MarshalJSONTo(enc *jsontext.Encoder) error {
	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}

	for k, v := range m.All() {
		if err := enc.WriteToken(jsontext.String(k)); err != nil {
			return err
		}
		if err := json.MarshalEncode(enc, v); err != nil {
			return err
		}
	}

	return enc.WriteToken(jsontext.EndObject)
}

type gobMap struct {
	Keys   []string
	Values []any
}

func (m *Map) GobEncode() ([]byte, error) {
	wire := gobMap{Keys: m.keys, Values: make([]any, 0, len(m.keys))}
	for _, k := range m.keys {
		wire.Values = append(wire.Values, m.values[k])
	}

	buf := &bytes.Buffer{}
	if err := gob.NewEncoder(buf).Encode(wire); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (m *Map) GobDecode(data []byte) error {
	var wire gobMap
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&wire); err != nil {
		return err
	}

	m.keys = nil
	m.values = make(map[string]any, len(wire.Keys))
	for i, k := range wire.Keys {
		var v any
		if i < len(wire.Values) {
			v = wire.Values[i]
		}
		m.Set(k, v)
	}

	return nil
}
