package events

import (
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Header names of the ztreamy event model. They double as the keys of the mapping
// representation returned by Event.ToMap.
const (
	HeaderEventID       = "Event-Id"
	HeaderSourceID      = "Source-Id"
	HeaderSyntax        = "Syntax"
	HeaderApplicationID = "Application-Id"
	HeaderAggregatorIDs = "Aggregator-Ids"
	HeaderEventType     = "Event-Type"
	HeaderTimestamp     = "Timestamp"
	HeaderBodyLength    = "Body-Length"

	KeyBody = "Body"
)

// Headers lists the headers with a dedicated Event field, in wire order.
var Headers = []string{
	HeaderEventID,
	HeaderSourceID,
	HeaderSyntax,
	HeaderApplicationID,
	HeaderAggregatorIDs,
	HeaderEventType,
	HeaderTimestamp,
	HeaderBodyLength,
}

var ErrReservedHeader error = errors.Errorf("reserved name used as extra header")

func IsHeader(name string) bool {
	for _, h := range Headers {
		if h == name {
			return true
		}
	}

	return false
}

// IsReserved reports whether name is a key of the mapping representation that extra
// headers may not take.
func IsReserved(name string) bool {
	return name == KeyBody || IsHeader(name)
}

type Event struct {
	EventID       string
	SourceID      string
	Syntax        string // content type of the body
	ApplicationID string
	AggregatorIDs []string
	EventType     string // human readable description of the event
	Timestamp     string // RFC 3339
	ExtraHeaders  *Map   // string values only
	Body          any
}

type Option func(*Event)

func WithEventID(id string) Option {
	return func(e *Event) { e.EventID = id }
}

func WithBody(body any) Option {
	return func(e *Event) { e.Body = body }
}

func WithTimestamp(ts string) Option {
	return func(e *Event) { e.Timestamp = ts }
}

func WithAggregatorIDs(ids ...string) Option {
	return func(e *Event) { e.AggregatorIDs = append(e.AggregatorIDs, ids...) }
}

// WithExtraHeader sets a custom header. Reserved names are ignored.
func WithExtraHeader(name, value string) Option {
	return func(e *Event) {
		if err := e.SetExtraHeader(name, value); err != nil {
			log.Debug().Err(err).Str("header", name).Msg("[events.WithExtraHeader] header ignored")
		}
	}
}

// NewEvent creates an event with a random id and the current timestamp unless options
// say otherwise.
func NewEvent(sourceID, syntax, applicationID, eventType string, opts ...Option) *Event {
	e := &Event{
		SourceID:      sourceID,
		Syntax:        syntax,
		ApplicationID: applicationID,
		EventType:     eventType,
		ExtraHeaders:  NewMap(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.EventID == "" {
		e.EventID = CreateUUID()
	}
	if e.Timestamp == "" {
		e.Timestamp = Timestamp()
	}

	return e
}

func CreateUUID() string {
	return uuid.NewString()
}

func (e *Event) SetBody(body any) {
	e.Body = body
}

// BodyMap returns the body when it is a mapping, nil otherwise.
func (e *Event) BodyMap() *Map {
	if m, ok := e.Body.(*Map); ok {
		return m
	}

	return nil
}

func (e *Event) SetExtraHeader(name, value string) error {
	if IsReserved(name) {
		return errors.New(fmt.Errorf("%w: %s", ErrReservedHeader, name))
	}

	if e.ExtraHeaders == nil {
		e.ExtraHeaders = NewMap()
	}
	e.ExtraHeaders.Set(name, value)

	return nil
}

func (e *Event) ExtraHeader(name string) (string, bool) {
	v, ok := e.ExtraHeaders.Get(name)
	if !ok {
		return "", false
	}

	s, ok := v.(string)
	return s, ok
}

func (e *Event) AppendAggregatorID(id string) {
	e.AggregatorIDs = append(e.AggregatorIDs, id)
}

// Time parses the event timestamp.
func (e *Event) Time() (time.Time, error) {
	if e.Timestamp == "" {
		return time.Time{}, errors.Errorf("event %s has no timestamp", e.EventID)
	}

	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, errors.New(err)
	}

	return t, nil
}

// ToMap builds the mapping representation of the event. Empty optional fields are left
// out. The body is shared, not copied.
func (e *Event) ToMap() *Map {
	m := NewMap().
		Set(HeaderEventID, e.EventID).
		Set(HeaderSourceID, e.SourceID).
		Set(HeaderSyntax, e.Syntax)

	if e.ApplicationID != "" {
		m.Set(HeaderApplicationID, e.ApplicationID)
	}
	if len(e.AggregatorIDs) > 0 {
		ids := make([]string, len(e.AggregatorIDs))
		copy(ids, e.AggregatorIDs)
		m.Set(HeaderAggregatorIDs, ids)
	}
	if e.EventType != "" {
		m.Set(HeaderEventType, e.EventType)
	}
	if e.Timestamp != "" {
		m.Set(HeaderTimestamp, e.Timestamp)
	}

	for k, v := range e.ExtraHeaders.All() {
		if IsReserved(k) {
			continue
		}
		m.Set(k, v)
	}

	if e.Body != nil {
		m.Set(KeyBody, e.Body)
	}

	return m
}
