package ztreamy

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	SerializerMetricsSubsystem = "event_serializer"
)

type SerializerMetrics struct {
	SerializedEvents  *prometheus.CounterVec
	SerializedBytes   *prometheus.CounterVec
	SerializeFailures *prometheus.CounterVec
	BatchSize         *prometheus.HistogramVec
}

func NewSerializerMetrics(registerer prometheus.Registerer) *SerializerMetrics {
	var SerializedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: SerializerMetricsSubsystem,
			Name:      "serialized_events_total",
			Help:      "Number of events serialized",
		},
		[]string{"content_type"},
	)

	var SerializedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: SerializerMetricsSubsystem,
			Name:      "serialized_bytes_total",
			Help:      "Number of bytes produced by serializers",
		},
		[]string{"content_type"},
	)

	var SerializeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: SerializerMetricsSubsystem,
			Name:      "serialize_failures_total",
			Help:      "Number of serialize calls that returned an error",
		},
		[]string{"content_type"},
	)

	var BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: SerializerMetricsSubsystem,
			Name:      "batch_size",
			Help:      "Number of events per serialized batch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		},
		[]string{"content_type"},
	)

	registerer.MustRegister(SerializedEvents)
	registerer.MustRegister(SerializedBytes)
	registerer.MustRegister(SerializeFailures)
	registerer.MustRegister(BatchSize)

	return &SerializerMetrics{
		SerializedEvents:  SerializedEvents,
		SerializedBytes:   SerializedBytes,
		SerializeFailures: SerializeFailures,
		BatchSize:         BatchSize,
	}
}
