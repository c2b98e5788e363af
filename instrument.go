package ztreamy

import (
	"github.com/rs/zerolog/log"

	"github.com/imunhatep/ztreamy/events"
)

// InstrumentedSerializer records metrics for every call to the wrapped serializer.
// Errors are passed through untouched.
type InstrumentedSerializer struct {
	events.Serializer
	metrics *SerializerMetrics
}

func Instrument(s events.Serializer, metrics *SerializerMetrics) *InstrumentedSerializer {
	return &InstrumentedSerializer{Serializer: s, metrics: metrics}
}

func (s *InstrumentedSerializer) Serialize(event events.Mapper) ([]byte, error) {
	data, err := s.Serializer.Serialize(event)
	s.observe(1, data, err)

	return data, err
}

func (s *InstrumentedSerializer) SerializeBatch(batch []events.Mapper) ([]byte, error) {
	data, err := s.Serializer.SerializeBatch(batch)
	if err == nil && s.metrics != nil {
		s.metrics.BatchSize.WithLabelValues(s.ContentType()).Observe(float64(len(batch)))
	}
	s.observe(len(batch), data, err)

	return data, err
}

func (s *InstrumentedSerializer) observe(count int, data []byte, err error) {
	contentType := s.ContentType()

	if err != nil {
		log.Debug().Err(err).Str("contentType", contentType).Int("events", count).Msg("[InstrumentedSerializer] serialize failed")
		if s.metrics != nil {
			s.metrics.SerializeFailures.WithLabelValues(contentType).Inc()
		}
		return
	}

	log.Trace().Str("contentType", contentType).Int("events", count).Int("size", len(data)).Msg("[InstrumentedSerializer] serialized")
	if s.metrics != nil {
		s.metrics.SerializedEvents.WithLabelValues(contentType).Add(float64(count))
		s.metrics.SerializedBytes.WithLabelValues(contentType).Add(float64(len(data)))
	}
}
