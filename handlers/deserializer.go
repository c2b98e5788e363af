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

var (
	ErrEventSyntax     error = errors.Errorf("event syntax error")
	ErrDuplicateHeader error = errors.Errorf("duplicate header in event")
	ErrSpuriousData    error = errors.Errorf("spurious data in the input event")
)

// Deserializer parses the ztreamy wire format from a buffer that can be fed in chunks
// of any size. A partial event at the end of a chunk stays buffered until the next call.
// A Deserializer keeps per-stream state, use one per source.
type Deserializer struct {
	data        []byte
	previousLen int

	headers        map[string]string
	aggregatorIDs  []string
	extraHeaders   *events.Map
	headerComplete bool
}

func NewDeserializer() *Deserializer {
	d := &Deserializer{}
	d.Reset()

	return d
}

// AppendData adds data to the buffer.
func (d *Deserializer) AppendData(data []byte) {
	d.data = append(d.data, data...)
	d.previousLen = len(d.data)
}

// DataConsumed reports the bytes consumed since the last AppendData.
func (d *Deserializer) DataConsumed() int {
	return d.previousLen - len(d.data)
}

// Pending reports the bytes buffered and not yet parsed into an event.
func (d *Deserializer) Pending() int {
	return len(d.data)
}

// partial reports whether an event has been started but not completed.
func (d *Deserializer) partial() bool {
	return len(d.data) > 0 || d.headerComplete || len(d.headers) > 0 || d.aggregatorIDs != nil || d.extraHeaders.Len() > 0
}

// Reset discards pending data and the partially parsed event.
func (d *Deserializer) Reset() {
	d.data = nil
	d.previousLen = 0
	d.eventReset()
}

func (d *Deserializer) eventReset() {
	d.headers = make(map[string]string)
	d.aggregatorIDs = nil
	d.extraHeaders = events.NewMap()
	d.headerComplete = false
}

// Deserialize appends data, when not nil, and parses every complete event in the buffer.
// With parseBody false bodies are kept as strings, except for syntaxes registered as
// always-parse. With complete true any data left after the last event is an error.
func (d *Deserializer) Deserialize(data []byte, parseBody, complete bool) ([]*events.Event, error) {
	if data != nil {
		d.AppendData(data)
	}

	var result []*events.Event
	for {
		event, err := d.DeserializeNext(parseBody)
		if err != nil {
			return result, err
		}
		if event == nil {
			break
		}
		result = append(result, event)
	}

	if complete && d.partial() {
		d.Reset()
		return result, errors.New(ErrSpuriousData)
	}

	return result, nil
}

// DeserializeNext parses one event from the buffer. It returns nil and keeps the data
// when the buffer does not hold a complete event. A malformed event resets the
// deserializer.
func (d *Deserializer) DeserializeNext(parseBody bool) (*events.Event, error) {
	event, err := d.next(parseBody)
	if err != nil {
		log.Debug().Err(err).Msg("[Deserializer.DeserializeNext] discarding buffered data")
		d.Reset()
		return nil, err
	}

	return event, nil
}

func (d *Deserializer) next(parseBody bool) (*events.Event, error) {
	pos := 0
	for !d.headerComplete && pos < len(d.data) {
		end := bytes.IndexByte(d.data[pos:], '\n')
		if end == -1 {
			break
		}

		line := string(d.data[pos : pos+end])
		pos += end + 1
		if line == "" {
			d.headerComplete = true
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.New(fmt.Errorf("%w: header line %q", ErrEventSyntax, line))
		}
		if err := d.updateHeader(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}
	d.data = d.data[pos:]

	if !d.headerComplete {
		return nil, nil
	}

	if err := checkMandatoryHeaders(d.headers); err != nil {
		return nil, err
	}

	bodyLength := 0
	if raw, ok := d.headers[events.HeaderBodyLength]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, errors.New(fmt.Errorf("%w: invalid Body-Length %q", ErrEventSyntax, raw))
		}
		bodyLength = n
	}

	if bodyLength > len(d.data) {
		return nil, nil
	}

	body := string(d.data[:bodyLength])
	d.data = d.data[bodyLength:]

	event, err := d.createEvent(body, parseBody)
	if err != nil {
		return nil, err
	}
	d.eventReset()

	return event, nil
}

func (d *Deserializer) updateHeader(name, value string) error {
	switch {
	case name == events.KeyBody:
		return errors.New(fmt.Errorf("%w: reserved header %s", ErrEventSyntax, name))
	case !events.IsHeader(name):
		d.extraHeaders.Set(name, value)
	case name == events.HeaderAggregatorIDs:
		if d.aggregatorIDs != nil {
			return errors.New(fmt.Errorf("%w: %s", ErrDuplicateHeader, name))
		}
		d.aggregatorIDs = strings.Split(value, ",")
	default:
		if _, exists := d.headers[name]; exists {
			return errors.New(fmt.Errorf("%w: %s", ErrDuplicateHeader, name))
		}
		d.headers[name] = value
	}

	return nil
}

func (d *Deserializer) createEvent(body string, parseBody bool) (*events.Event, error) {
	h := d.headers
	syntax := h[events.HeaderSyntax]

	opts := []events.Option{
		events.WithEventID(h[events.HeaderEventID]),
		events.WithTimestamp(h[events.HeaderTimestamp]),
		events.WithAggregatorIDs(d.aggregatorIDs...),
	}
	for k, v := range d.extraHeaders.All() {
		opts = append(opts, events.WithExtraHeader(k, v.(string)))
	}

	var event *events.Event
	if parseBody || events.AlwaysParse(syntax) {
		var err error
		if event, err = events.Create(h[events.HeaderSourceID], syntax, body, opts...); err != nil {
			return nil, err
		}
	} else {
		event = events.NewRaw(h[events.HeaderSourceID], syntax, body, opts...)
	}

	event.ApplicationID = h[events.HeaderApplicationID]
	event.EventType = h[events.HeaderEventType]
	if _, ok := h[events.HeaderTimestamp]; !ok {
		event.Timestamp = ""
	}

	return event, nil
}

func checkMandatoryHeaders(headers map[string]string) error {
	for _, h := range mandatoryHeaders {
		if _, ok := headers[h]; !ok {
			return errors.New(fmt.Errorf("%w: %s", ErrMissingHeader, h))
		}
	}

	return nil
}

// DeserializeHeaders parses the headers of a single event from text that holds header
// lines only, with no blank lines.
func DeserializeHeaders(text string) (map[string]string, *events.Map, error) {
	headers := make(map[string]string)
	extra := events.NewMap()

	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, nil, errors.New(fmt.Errorf("%w: header line %q", ErrEventSyntax, line))
		}

		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name == events.KeyBody {
			return nil, nil, errors.New(fmt.Errorf("%w: reserved header %s", ErrEventSyntax, name))
		}
		if !events.IsHeader(name) {
			extra.Set(name, value)
			continue
		}
		if _, exists := headers[name]; exists {
			return nil, nil, errors.New(fmt.Errorf("%w: %s", ErrDuplicateHeader, name))
		}
		headers[name] = value
	}

	if err := checkMandatoryHeaders(headers); err != nil {
		return nil, nil, err
	}

	return headers, extra, nil
}
