package events

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
)

const (
	TestEventSyntax      = "application/json"
	TestEventApplication = "Ztreamy-java-test"
	TestEventType        = "Test event"
)

// NewTestEvent creates an event whose body carries a "timestamp" entry with a
// monotonic clock reading in nanoseconds, taken at construction.
func NewTestEvent(sourceID string, opts ...Option) *Event {
	body := NewMap().Set("timestamp", Monotonic())
	opts = append([]Option{WithBody(body)}, opts...)

	return NewEvent(sourceID, TestEventSyntax, TestEventApplication, TestEventType, opts...)
}

// Sequenced test events have an empty body. Sequence number and send time travel in the
// X-Float-Timestamp header as "<seq>/<unix seconds>".
const (
	SequencedTestSyntax  = "ztreamy-test"
	HeaderFloatTimestamp = "X-Float-Timestamp"
)

var ErrSequence error = errors.Errorf("invalid " + HeaderFloatTimestamp + " header")

func init() {
	RegisterSyntax(SequencedTestSyntax, sequencedTestFactory, true)
}

func NewSequencedTestEvent(sourceID string, sequenceNum int, opts ...Option) *Event {
	now := Now()
	seconds := float64(now.UnixNano()) / 1e9
	stamp := strconv.Itoa(sequenceNum) + "/" + strconv.FormatFloat(seconds, 'f', -1, 64)

	opts = append(opts, WithExtraHeader(HeaderFloatTimestamp, stamp))

	return NewEvent(sourceID, SequencedTestSyntax, "", "", opts...)
}

// Sequence returns the sequence number and send time of a sequenced test event.
func Sequence(e *Event) (int, float64, error) {
	stamp, ok := e.ExtraHeader(HeaderFloatTimestamp)
	if !ok {
		return 0, 0, errors.New(fmt.Errorf("%w: missing in event %s", ErrSequence, e.EventID))
	}

	seq, seconds, ok := strings.Cut(stamp, "/")
	if !ok {
		return 0, 0, errors.New(fmt.Errorf("%w: %q", ErrSequence, stamp))
	}

	n, err := strconv.Atoi(seq)
	if err != nil {
		return 0, 0, errors.New(fmt.Errorf("%w: %q", ErrSequence, stamp))
	}
	f, err := strconv.ParseFloat(seconds, 64)
	if err != nil {
		return 0, 0, errors.New(fmt.Errorf("%w: %q", ErrSequence, stamp))
	}

	return n, f, nil
}

// sequencedTestFactory ignores the body, everything lives in the headers.
func sequencedTestFactory(sourceID, syntax, body string, opts ...Option) (*Event, error) {
	if syntax != SequencedTestSyntax {
		return nil, errors.Errorf("unsupported syntax in test event: %s", syntax)
	}

	event := NewEvent(sourceID, SequencedTestSyntax, "", "", opts...)
	if _, _, err := Sequence(event); err != nil {
		return nil, err
	}

	return event, nil
}
