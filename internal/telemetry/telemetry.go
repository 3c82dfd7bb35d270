// Package telemetry holds memcore's Prometheus metrics, grounded on
// contextd's pkg/prefetch/metrics.go promauto registration pattern. Unlike
// the teacher's package-level singleton (sync.Once over a global var),
// memcore follows its own constructed-engine convention: Metrics is built
// once via New and passed explicitly into MemoryCore.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector memcore's components update.
type Metrics struct {
	RetrievalDuration    *prometheus.HistogramVec
	RetrievalResultCount prometheus.Histogram

	EncodeTotal    *prometheus.CounterVec
	EncodeDuration prometheus.Histogram

	ReflectionWritesTotal *prometheus.CounterVec

	DecayArchivedTotal *prometheus.CounterVec

	ContextBuilderCompressedTotal prometheus.Counter
}

// New registers memcore's metrics against reg. Pass prometheus.NewRegistry()
// for test isolation, or prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RetrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "memcore_retrieval_duration_seconds",
				Help: "Duration of Retriever.Retrieve calls in seconds.",
			},
			[]string{"mode"},
		),
		RetrievalResultCount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memcore_retrieval_result_count",
				Help:    "Number of results returned per Retriever.Retrieve call.",
				Buckets: prometheus.LinearBuckets(0, 2, 10),
			},
		),
		EncodeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memcore_encode_total",
				Help: "Total number of encode operations, by outcome.",
			},
			[]string{"outcome"}, // "encoded", "skipped_unchanged", "failed"
		),
		EncodeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name: "memcore_encode_duration_seconds",
				Help: "Duration of embedding + VectorStore upsert during encode.",
			},
		),
		ReflectionWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memcore_reflection_writes_total",
				Help: "Total number of relationships written by the Reflector, by kind.",
			},
			[]string{"kind"},
		),
		DecayArchivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memcore_decay_archived_total",
				Help: "Total number of blocks archived by the DecayManager, by policy.",
			},
			[]string{"policy"},
		),
		ContextBuilderCompressedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "memcore_contextbuilder_compressed_total",
				Help: "Total number of materialize_context calls that invoked the Compressor.",
			},
		),
	}
}
