package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RetrievalDuration.WithLabelValues("dense").Observe(0.01)
	m.EncodeTotal.WithLabelValues("encoded").Inc()
	m.ReflectionWritesTotal.WithLabelValues("related_to").Inc()
	m.DecayArchivedTotal.WithLabelValues("time").Inc()
	m.ContextBuilderCompressedTotal.Inc()

	require.Equal(t, float64(1), testutil.ToFloat64(m.EncodeTotal.WithLabelValues("encoded")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ContextBuilderCompressedTotal))
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
