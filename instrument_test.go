package ztreamy

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"github.com/imunhatep/ztreamy/events"
	"github.com/imunhatep/ztreamy/handlers"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func TestInstrument_CountsEvents(t *testing.T) {
	metrics := NewSerializerMetrics(prometheus.NewRegistry())
	serializer := Instrument(handlers.JSON, metrics)

	assert.Equal(t, "application/json", serializer.ContentType())

	single, err := serializer.Serialize(events.NewMap().Set("id", "1"))
	assert.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(single))

	batch, err := serializer.SerializeBatch([]events.Mapper{
		events.NewMap().Set("id", "1"),
		events.NewMap().Set("id", "2"),
	})
	assert.NoError(t, err)

	label := "application/json"
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.SerializedEvents.WithLabelValues(label)))
	assert.Equal(t, float64(len(single)+len(batch)), testutil.ToFloat64(metrics.SerializedBytes.WithLabelValues(label)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SerializeFailures.WithLabelValues(label)))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.BatchSize))
}

func TestInstrument_CountsFailures(t *testing.T) {
	metrics := NewSerializerMetrics(prometheus.NewRegistry())
	serializer := Instrument(&handlers.ZtreamyEncoder{}, metrics)

	_, err := serializer.Serialize(events.NewMap().Set("id", "1"))
	assert.True(t, errors.Is(err, handlers.ErrMissingHeader), "Errors should pass through")

	label := handlers.ContentTypeZtreamy
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SerializeFailures.WithLabelValues(label)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SerializedEvents.WithLabelValues(label)))

	expected := `
# HELP event_serializer_serialize_failures_total Number of serialize calls that returned an error
# TYPE event_serializer_serialize_failures_total counter
event_serializer_serialize_failures_total{content_type="application/ztreamy-event"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(metrics.SerializeFailures, strings.NewReader(expected)))
}

func TestInstrument_LogsFailuresAtDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = logger })

	serializer := Instrument(&handlers.ZtreamyEncoder{}, nil)
	_, err := serializer.Serialize(events.NewMap())
	assert.Error(t, err)

	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.NotContains(t, buf.String(), `"level":"error"`, "Callers decide how to report failures")
}

func TestInstrument_WithoutMetrics(t *testing.T) {
	serializer := Instrument(&handlers.GobEncoder{}, nil)

	_, err := serializer.Serialize(events.NewTestEvent("source"))
	assert.NoError(t, err)
}

func TestNewSerializerMetrics_RegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewSerializerMetrics(registry)

	assert.Panics(t, func() { NewSerializerMetrics(registry) }, "Registering twice should panic")
}
