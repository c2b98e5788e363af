package handlers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/rs/zerolog/log"

	"github.com/imunhatep/ztreamy/events"
)

const ContentTypeZtreamy = "application/ztreamy-event"

var ErrMissingHeader error = errors.Errorf("missing mandatory header")

var mandatoryHeaders = []string{events.HeaderEventID, events.HeaderSourceID, events.HeaderSyntax}

// ZtreamyEncoder writes events in the ztreamy wire format: "Name: value" header lines,
// a Body-Length header, an empty line and the body bytes. A batch is the plain
// concatenation of its events.
type ZtreamyEncoder struct {
	// Body serializes structured bodies. Defaults to JSON.
	Body events.Serializer
}

func (z *ZtreamyEncoder) ContentType() string {
	return ContentTypeZtreamy
}

func (z *ZtreamyEncoder) Serialize(event events.Mapper) ([]byte, error) {
	m, err := toMap(event, "$")
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := z.write(buf, m, "$"); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (z *ZtreamyEncoder) SerializeBatch(batch []events.Mapper) ([]byte, error) {
	buf := &bytes.Buffer{}
	for i, event := range batch {
		path := fmt.Sprintf("$[%d]", i)
		m, err := toMap(event, path)
		if err != nil {
			return nil, err
		}
		if err := z.write(buf, m, path); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode reads a single event and returns its mapping representation.
func (z *ZtreamyEncoder) Decode(data []byte) (*events.Map, error) {
	parsed, err := NewDeserializer().Deserialize(data, true, true)
	if err != nil {
		return nil, err
	}
	if len(parsed) != 1 {
		return nil, errors.Errorf("expected a single event, found %d", len(parsed))
	}

	return parsed[0].ToMap(), nil
}

func (z *ZtreamyEncoder) DecodeBatch(data []byte) ([]*events.Map, error) {
	parsed, err := NewDeserializer().Deserialize(data, true, true)
	if err != nil {
		return nil, err
	}

	result := make([]*events.Map, 0, len(parsed))
	for _, event := range parsed {
		result = append(result, event.ToMap())
	}

	return result, nil
}

func (z *ZtreamyEncoder) write(buf *bytes.Buffer, m *events.Map, path string) error {
	for _, h := range mandatoryHeaders {
		if !m.Has(h) {
			return errors.New(fmt.Errorf("%w: %s at %s", ErrMissingHeader, h, path))
		}
	}

	var lines []string
	for k, v := range m.All() {
		if k == events.KeyBody || k == events.HeaderBodyLength {
			continue
		}

		value, err := headerValue(k, v)
		if err != nil {
			return errors.New(events.Unserializable(path+"."+k, err))
		}
		lines = append(lines, k+": "+value)
	}

	body, err := z.body(m, path)
	if err != nil {
		return err
	}

	lines = append(lines, events.HeaderBodyLength+": "+strconv.Itoa(len(body)), "")
	buf.WriteString(strings.Join(lines, "\n"))
	buf.WriteString("\n")
	buf.Write(body)

	log.Trace().Str("path", path).Int("bodyLength", len(body)).Msg("[ZtreamyEncoder.write] event written")

	return nil
}

func (z *ZtreamyEncoder) body(m *events.Map, path string) ([]byte, error) {
	v, _ := m.Get(events.KeyBody)

	switch body := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(body), nil
	case []byte:
		return body, nil
	case events.Mapper:
		if z.Body != nil {
			data, err := z.Body.Serialize(body)
			if err != nil {
				log.Debug().Err(err).Str("path", path).Msg("[ZtreamyEncoder.body] failed to serialize body")
			}
			return data, err
		}
	}

	// structured bodies default to JSON text
	return JSON.marshalValue(v, path+"."+events.KeyBody)
}

func headerValue(name string, v any) (string, error) {
	if name == "" || strings.ContainsAny(name, ":\r\n") {
		return "", errors.Errorf("invalid header name %q", name)
	}

	var value string
	switch val := v.(type) {
	case string:
		value = val
	case []string:
		value = strings.Join(val, ",")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return "", errors.Errorf("header %s: list item of type %T is not a string", name, item)
			}
			parts = append(parts, s)
		}
		value = strings.Join(parts, ",")
	default:
		return "", errors.Errorf("header %s: value of type %T is not a string", name, v)
	}

	if strings.ContainsAny(value, "\r\n") {
		return "", errors.Errorf("header %s: value contains a line break", name)
	}

	return value, nil
}
