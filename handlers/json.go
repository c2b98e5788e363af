package handlers

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/rs/zerolog/log"

	"github.com/imunhatep/ztreamy/events"
)

const ContentTypeJSON = "application/json"

var ErrNilEvent error = errors.Errorf("nil event")

// JSON is the shared JSON encoder. It holds no mutable state and is safe for concurrent
// use.
var JSON = &JSONEncoder{}

func init() {
	events.RegisterSyntax(ContentTypeJSON, jsonEventFactory, false)
}

// JSONEncoder writes the mapping representation of events as compact UTF-8 JSON,
// keeping the key order of the mapping.
type JSONEncoder struct{}

func (j *JSONEncoder) ContentType() string {
	return ContentTypeJSON
}

func (j *JSONEncoder) Serialize(event events.Mapper) ([]byte, error) {
	if isNil(event) {
		return nil, errors.New(events.Unserializable("$", ErrNilEvent))
	}

	return j.marshalValue(event, "$")
}

func (j *JSONEncoder) marshalValue(v any, path string) ([]byte, error) {
	return j.encode(func(enc *jsontext.Encoder, visited events.Visited) error {
		return writeValue(enc, v, path, visited)
	})
}

func (j *JSONEncoder) SerializeBatch(batch []events.Mapper) ([]byte, error) {
	return j.encode(func(enc *jsontext.Encoder, visited events.Visited) error {
		if err := enc.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}

		for i, event := range batch {
			path := fmt.Sprintf("$[%d]", i)
			if isNil(event) {
				return events.Unserializable(path, ErrNilEvent)
			}
			if err := writeValue(enc, event, path, visited); err != nil {
				return err
			}
		}

		return enc.WriteToken(jsontext.EndArray)
	})
}

func (j *JSONEncoder) encode(write func(*jsontext.Encoder, events.Visited) error) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := jsontext.NewEncoder(buf)

	if err := write(enc, events.Visited{}); err != nil {
		log.Debug().Err(err).Msg("[JSONEncoder.encode] failed to encode")
		return nil, errors.New(asUnserializable(err))
	}

	// the encoder terminates top level values with a newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (j *JSONEncoder) Decode(data []byte) (*events.Map, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	if kind := dec.PeekKind(); kind != '{' {
		return nil, errors.Errorf("expected a JSON object, found %v", kind)
	}

	v, err := readValue(dec)
	if err != nil {
		return nil, errors.New(err)
	}
	if err := readEnd(dec); err != nil {
		return nil, err
	}

	return v.(*events.Map), nil
}

func (j *JSONEncoder) DecodeBatch(data []byte) ([]*events.Map, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	if _, err := readToken(dec, '['); err != nil {
		return nil, errors.New(err)
	}

	var result []*events.Map
	for dec.PeekKind() == '{' {
		v, err := readValue(dec)
		if err != nil {
			return nil, errors.New(err)
		}
		result = append(result, v.(*events.Map))
	}

	if _, err := readToken(dec, ']'); err != nil {
		return nil, errors.New(err)
	}
	if err := readEnd(dec); err != nil {
		return nil, err
	}

	return result, nil
}

// readEnd fails unless the decoder is at the end of its input.
func readEnd(dec *jsontext.Decoder) error {
	offset := dec.InputOffset()
	if _, err := dec.ReadToken(); !errors.Is(err, io.EOF) {
		return errors.Errorf("unexpected data after the JSON value at offset %d", offset)
	}

	return nil
}

// writeValue walks containers itself so that *events.Map keeps its key order and cycles
// are caught. Leaves go through the JSON marshaller.
func writeValue(enc *jsontext.Encoder, v any, path string, visited events.Visited) error {
	switch val := v.(type) {
	case nil:
		return enc.WriteToken(jsontext.Null)

	case *events.Map:
		if val == nil {
			return enc.WriteToken(jsontext.Null)
		}
		if !visited.Enter(val) {
			return events.Unserializable(path, events.ErrCycle)
		}
		defer visited.Leave(val)

		if err := enc.WriteToken(jsontext.BeginObject); err != nil {
			return err
		}
		for k, item := range val.All() {
			if err := writeKey(enc, k, path); err != nil {
				return err
			}
			if err := writeValue(enc, item, path+"."+k, visited); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndObject)

	case events.Mapper:
		if isNil(val) {
			return events.Unserializable(path, errors.Errorf("nil %T", val))
		}
		if !visited.Enter(val) {
			return events.Unserializable(path, events.ErrCycle)
		}
		defer visited.Leave(val)

		return writeValue(enc, val.ToMap(), path, visited)

	case []any:
		if !visited.Enter(val) {
			return events.Unserializable(path, events.ErrCycle)
		}
		defer visited.Leave(val)

		if err := enc.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}
		for i, item := range val {
			if err := writeValue(enc, item, fmt.Sprintf("%s[%d]", path, i), visited); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndArray)

	case map[string]any:
		if !visited.Enter(val) {
			return events.Unserializable(path, events.ErrCycle)
		}
		defer visited.Leave(val)

		if err := enc.WriteToken(jsontext.BeginObject); err != nil {
			return err
		}
		for _, k := range slices.Sorted(maps.Keys(val)) {
			if err := writeKey(enc, k, path); err != nil {
				return err
			}
			if err := writeValue(enc, val[k], path+"."+k, visited); err != nil {
				return err
			}
		}
		return enc.WriteToken(jsontext.EndObject)
	}

	if err := json.MarshalEncode(enc, v, json.Deterministic(true)); err != nil {
		return events.Unserializable(path, err)
	}

	return nil
}

func writeKey(enc *jsontext.Encoder, key, path string) error {
	if err := enc.WriteToken(jsontext.String(key)); err != nil {
		return events.Unserializable(path, err)
	}

	return nil
}

func asUnserializable(err error) error {
	if errors.Is(err, events.ErrUnserializable) {
		return err
	}

	return events.Unserializable("$", err)
}

func readValue(dec *jsontext.Decoder) (any, error) {
	switch dec.PeekKind() {
	case '{':
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}

		m := events.NewMap()
		for dec.PeekKind() == '"' {
			tok, err := dec.ReadToken()
			if err != nil {
				return nil, err
			}
			// the token is only valid until the next read
			key := tok.String()

			value, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			m.Set(key, value)
		}

		if _, err := readToken(dec, '}'); err != nil {
			return nil, err
		}
		return m, nil

	case '[':
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}

		list := []any{}
		for kind := dec.PeekKind(); kind != ']' && kind != 0; kind = dec.PeekKind() {
			value, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}

		if _, err := readToken(dec, ']'); err != nil {
			return nil, err
		}
		return list, nil

	case '0':
		raw, err := dec.ReadValue()
		if err != nil {
			return nil, err
		}
		return readNumber(string(raw))
	}

	raw, err := dec.ReadValue()
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	return v, nil
}

// readNumber keeps integers exact: int64 when they fit, then uint64, float64 otherwise.
func readNumber(text string) (any, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	if n, err := strconv.ParseUint(text, 10, 64); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, errors.New(err)
	}

	return f, nil
}

// toMap is Mapper.ToMap guarded against nil events.
func toMap(event events.Mapper, path string) (*events.Map, error) {
	if isNil(event) {
		return nil, errors.New(events.Unserializable(path, ErrNilEvent))
	}

	return event.ToMap(), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}


	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}

	return false
}

func readToken(dec *jsontext.Decoder, kind jsontext.Kind) (jsontext.Token, error) {
	tok, err := dec.ReadToken()
	if err != nil {
		return tok, err
	}
	if tok.Kind() != kind {
		return tok, errors.Errorf("expected %v, found %v", kind, tok.Kind())
	}

	return tok, nil
}

// jsonEventFactory parses JSON object bodies into a mapping. Other bodies stay raw.
func jsonEventFactory(sourceID, syntax, body string, opts ...events.Option) (*events.Event, error) {
	event := events.NewRaw(sourceID, syntax, body, opts...)

	trimmed := bytes.TrimSpace([]byte(body))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return event, nil
	}

	m, err := JSON.Decode(trimmed)
	if err != nil {
		return nil, err
	}
	event.SetBody(m)

	return event, nil
}
