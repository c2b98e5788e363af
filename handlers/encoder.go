package handlers

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/go-errors/errors"

	"github.com/imunhatep/ztreamy/events"
)

const ContentTypeGob = "application/x-gob"

// GobEncoder is the binary sibling of JSONEncoder. Key order survives a round trip
// because events.Map encodes its keys alongside the values.
type GobEncoder struct{}

func (g *GobEncoder) ContentType() string {
	return ContentTypeGob
}

func (g *GobEncoder) Serialize(event events.Mapper) ([]byte, error) {
	m, err := toMap(event, "$")
	if err != nil {
		return nil, err
	}
	if err := checkCycles(m); err != nil {
		return nil, err
	}

	return g.encode(m)
}

func (g *GobEncoder) SerializeBatch(batch []events.Mapper) ([]byte, error) {
	maps := make([]*events.Map, 0, len(batch))
	for i, event := range batch {
		m, err := toMap(event, fmt.Sprintf("$[%d]", i))
		if err != nil {
			return nil, err
		}
		if err := checkCycles(m); err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}

	return g.encode(maps)
}

// gob recurses into cyclic values until the stack runs out
func checkCycles(m *events.Map) error {
	if err := events.CheckCycles(m); err != nil {
		return errors.New(err)
	}

	return nil
}

func (g *GobEncoder) encode(v any) ([]byte, error) {
	var x interface{} = v

	buf := &bytes.Buffer{}
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(&x); err != nil {
		return nil, errors.New(events.Unserializable("$", err))
	}

	return buf.Bytes(), nil
}

func (g *GobEncoder) Decode(data []byte) (*events.Map, error) {
	x, err := g.decode(data)
	if err != nil {
		return nil, err
	}

	m, ok := x.(*events.Map)
	if !ok {
		return nil, errors.Errorf("expected a single event, found %T", x)
	}

	return m, nil
}

func (g *GobEncoder) DecodeBatch(data []byte) ([]*events.Map, error) {
	x, err := g.decode(data)
	if err != nil {
		return nil, err
	}

	maps, ok := x.([]*events.Map)
	if !ok {
		return nil, errors.Errorf("expected a batch of events, found %T", x)
	}

	return maps, nil
}

func (g *GobEncoder) decode(data []byte) (interface{}, error) {
	var x interface{}

	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&x); err != nil {
		return nil, errors.New(err)
	}

	return x, nil
}
