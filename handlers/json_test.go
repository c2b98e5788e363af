package handlers

import (
	stdjson "encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/imunhatep/ztreamy/events"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func TestJSONEncoder_ContentType(t *testing.T) {
	assert.Equal(t, "application/json", JSON.ContentType())
	assert.Equal(t, "application/json", (&JSONEncoder{}).ContentType())
}

func TestJSONEncoder_SerializeKeepsOrder(t *testing.T) {
	m := events.NewMap().
		Set("id", "abc").
		Set("body", events.NewMap().Set("msg", "hi"))

	data, err := JSON.Serialize(m)
	assert.NoError(t, err)
	assert.Equal(t, `{"id":"abc","body":{"msg":"hi"}}`, string(data))

	reversed := events.NewMap().Set("z", 1).Set("a", 2)
	data, err = JSON.Serialize(reversed)
	assert.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2}`, string(data))
}

func TestJSONEncoder_SerializeBatch(t *testing.T) {
	batch := []events.Mapper{
		events.NewMap().Set("id", "1"),
		events.NewMap().Set("id", "2"),
	}

	data, err := JSON.SerializeBatch(batch)
	assert.NoError(t, err)
	assert.Equal(t, `[{"id":"1"},{"id":"2"}]`, string(data))
}

func TestJSONEncoder_Empty(t *testing.T) {
	data, err := JSON.Serialize(events.NewMap())
	assert.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	data, err = JSON.SerializeBatch(nil)
	assert.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestJSONEncoder_SerializeEvent(t *testing.T) {
	event := events.NewEvent("source", "application/json", "Ztreamy-test", "Test event",
		events.WithEventID("id-1"),
		events.WithTimestamp("2020-01-01T00:00:00Z"),
		events.WithAggregatorIDs("agg-1", "agg-2"),
		events.WithBody(events.NewMap().
			Set("count", 3).
			Set("ok", true).
			Set("none", nil).
			Set("list", []any{"a", 1.5}).
			Set("meta", map[string]any{"b": 2, "a": 1}),
		),
	)

	data, err := JSON.Serialize(event)
	assert.NoError(t, err)
	assert.Equal(t, `{"Event-Id":"id-1","Source-Id":"source","Syntax":"application/json",`+
		`"Application-Id":"Ztreamy-test","Aggregator-Ids":["agg-1","agg-2"],"Event-Type":"Test event",`+
		`"Timestamp":"2020-01-01T00:00:00Z",`+
		`"Body":{"count":3,"ok":true,"none":null,"list":["a",1.5],"meta":{"a":1,"b":2}}}`, string(data))

	// standard JSON parsing sees the same structure
	var parsed map[string]any
	assert.NoError(t, stdjson.Unmarshal(data, &parsed))
	assert.Equal(t, "id-1", parsed["Event-Id"])
	assert.Equal(t, []any{"agg-1", "agg-2"}, parsed["Aggregator-Ids"])
	assert.Equal(t, map[string]any{
		"count": float64(3),
		"ok":    true,
		"none":  nil,
		"list":  []any{"a", 1.5},
		"meta":  map[string]any{"a": float64(1), "b": float64(2)},
	}, parsed["Body"])
}

func TestJSONEncoder_BatchMatchesSingle(t *testing.T) {
	batch := []*events.Event{
		events.NewTestEvent("source-1"),
		events.NewTestEvent("source-2"),
		events.NewEvent("source-3", "text/plain", "app", "type", events.WithBody("plain")),
	}

	data, err := events.SerializeAll(JSON, batch)
	assert.NoError(t, err)

	var parsed []stdjson.RawMessage
	assert.NoError(t, stdjson.Unmarshal(data, &parsed))
	assert.Len(t, parsed, len(batch))

	for i, event := range batch {
		single, err := JSON.Serialize(event)
		assert.NoError(t, err)
		assert.JSONEq(t, string(single), string(parsed[i]), "Batch element %d should match single serialization", i)
		assert.Equal(t, string(single), string(parsed[i]), "Batch element %d should keep key order", i)
	}
}

func TestJSONEncoder_Unserializable(t *testing.T) {
	tests := map[string]any{
		"channel":      make(chan int),
		"function":     func() {},
		"nan":          math.NaN(),
		"invalid utf8": string([]byte{0xff, 0xfe}),
	}

	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := JSON.Serialize(events.NewMap().Set("value", value))
			assert.Error(t, err)
			assert.True(t, errors.Is(err, events.ErrUnserializable), "Error should match ErrUnserializable: %v", err)
		})
	}
}

func TestJSONEncoder_UnserializablePath(t *testing.T) {
	body := events.NewMap().Set("items", []any{"ok", make(chan int)})

	_, err := JSON.SerializeBatch([]events.Mapper{events.NewMap(), events.NewMap().Set("Body", body)})

	var uerr *events.UnserializableError
	assert.True(t, errors.As(err, &uerr))
	assert.Equal(t, "$[1].Body.items[1]", uerr.Path)
}

func TestJSONEncoder_Cycle(t *testing.T) {
	m := events.NewMap()
	m.Set("self", m)

	_, err := JSON.Serialize(m)
	assert.True(t, errors.Is(err, events.ErrUnserializable))
	assert.True(t, errors.Is(err, events.ErrCycle))
}

func TestJSONEncoder_SharedValueIsNotACycle(t *testing.T) {
	shared := events.NewMap().Set("x", 1)
	m := events.NewMap().Set("a", shared).Set("b", shared)

	data, err := JSON.Serialize(m)
	assert.NoError(t, err)
	assert.Equal(t, `{"a":{"x":1},"b":{"x":1}}`, string(data))
}

func TestJSONEncoder_LargeIntegers(t *testing.T) {
	data, err := JSON.Serialize(events.NewMap().Set("max", int64(math.MaxInt64)).Set("umax", uint64(math.MaxUint64)))
	assert.NoError(t, err)
	assert.Equal(t, `{"max":9223372036854775807,"umax":18446744073709551615}`, string(data))
}

func TestJSONEncoder_Concurrent(t *testing.T) {
	event := events.NewTestEvent("source")
	expected, err := JSON.Serialize(event)
	assert.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = JSON.Serialize(event)
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		assert.Equal(t, expected, result)
	}
}

func TestJSONEncoder_DecodeKeepsOrder(t *testing.T) {
	m, err := JSON.Decode([]byte(`{"z":1,"a":{"y":"s","b":[true,null]},"m":"x"}`))
	assert.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	nested, _ := m.Get("a")
	assert.Equal(t, []string{"y", "b"}, nested.(*events.Map).Keys())

	list, _ := nested.(*events.Map).Get("b")
	assert.Equal(t, []any{true, nil}, list)
}

func TestJSONEncoder_RoundTrip(t *testing.T) {
	event := events.NewTestEvent("source", events.WithAggregatorIDs("a"))

	data, err := JSON.Serialize(event)
	assert.NoError(t, err)

	m, err := JSON.Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, event.ToMap().Keys(), m.Keys())

	again, err := JSON.Serialize(m)
	assert.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestJSONEncoder_DecodeBatch(t *testing.T) {
	maps, err := JSON.DecodeBatch([]byte(`[{"id":"1"},{"id":"2"}]`))
	assert.NoError(t, err)
	assert.Len(t, maps, 2)

	id, _ := maps[1].Get("id")
	assert.Equal(t, "2", id)

	maps, err = JSON.DecodeBatch([]byte(`[]`))
	assert.NoError(t, err)
	assert.Empty(t, maps)
}

func TestJSONEncoder_DecodeError(t *testing.T) {
	_, err := JSON.Decode([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = JSON.Decode([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = JSON.DecodeBatch([]byte(`{"a":1}`))
	assert.Error(t, err)
}

func TestJSONEventFactory(t *testing.T) {
	event, err := events.Create("source", ContentTypeJSON, `{"b":1,"a":2}`)
	assert.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, event.BodyMap().Keys())

	event, err = events.Create("source", ContentTypeJSON, `"just a string"`)
	assert.NoError(t, err)
	assert.Equal(t, `"just a string"`, event.Body)
}

func TestJSONEncoder_DecodeObjects(t *testing.T) {
	m, err := JSON.Decode([]byte(`{"a":1,"b":{"c":"d"},"e":[{"f":null}]}`))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "e"}, m.Keys())

	nested, _ := m.Get("b")
	c, _ := nested.(*events.Map).Get("c")
	assert.Equal(t, "d", c)

	list, _ := m.Get("e")
	assert.Equal(t, []string{"f"}, list.([]any)[0].(*events.Map).Keys())
}

func TestJSONEncoder_DecodeTrailingData(t *testing.T) {
	tests := map[string]string{
		"second object": `{"a":1} {"b":2}`,
		"garbage":       `{"a":1}xyz`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := JSON.Decode([]byte(data))
			assert.Error(t, err)
		})
	}

	_, err := JSON.DecodeBatch([]byte(`[{"a":1}] trailing`))
	assert.Error(t, err)

	m, err := JSON.Decode([]byte("{\"a\":1}\n  "))
	assert.NoError(t, err, "Trailing whitespace should be accepted")
	assert.Equal(t, []string{"a"}, m.Keys())

	_, err = events.Create("source", ContentTypeJSON, `{"a":1}xyz`)
	assert.Error(t, err, "JSON bodies with trailing data should not be truncated")
}

func TestJSONEncoder_DecodeNumbers(t *testing.T) {
	data := `{"big":9007199254740993,"neg":-42,"huge":18446744073709551615,"float":1.5,"exp":1e3}`

	m, err := JSON.Decode([]byte(data))
	assert.NoError(t, err)

	big, _ := m.Get("big")
	assert.Equal(t, int64(9007199254740993), big)
	neg, _ := m.Get("neg")
	assert.Equal(t, int64(-42), neg)
	huge, _ := m.Get("huge")
	assert.Equal(t, uint64(math.MaxUint64), huge)
	float, _ := m.Get("float")
	assert.Equal(t, 1.5, float)
	exp, _ := m.Get("exp")
	assert.Equal(t, float64(1000), exp)

	again, err := JSON.Serialize(m)
	assert.NoError(t, err)
	assert.Contains(t, string(again), `"big":9007199254740993`, "Integers should survive a round trip")
	assert.Contains(t, string(again), `"huge":18446744073709551615`)
}

func TestJSONEncoder_NilEvent(t *testing.T) {
	var event *events.Event

	_, err := JSON.Serialize(event)
	assert.True(t, errors.Is(err, events.ErrUnserializable))
	assert.True(t, errors.Is(err, ErrNilEvent))

	_, err = JSON.Serialize(nil)
	assert.True(t, errors.Is(err, ErrNilEvent))

	_, err = JSON.SerializeBatch([]events.Mapper{events.NewTestEvent("source"), event})
	assert.True(t, errors.Is(err, ErrNilEvent))

	_, err = (&GobEncoder{}).Serialize(event)
	assert.True(t, errors.Is(err, ErrNilEvent))

	_, err = (&ZtreamyEncoder{}).SerializeBatch([]events.Mapper{event})
	assert.True(t, errors.Is(err, ErrNilEvent))

	body := events.NewMap().Set("inner", event)
	_, err = JSON.Serialize(body)
	assert.True(t, errors.Is(err, events.ErrUnserializable), "Nil events nested in a body should not panic")
}
