package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("due_reminder").End(nil))
	boom := errors.New("smtp down")
	require.ErrorIs(t, metrics.Track("due_reminder").End(boom), boom)
	metrics.AddItems("due_reminder", 3)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("due_reminder", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("due_reminder")))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.items.WithLabelValues("due_reminder")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	require.NoError(t, metrics.Track("noop").End(nil))
	metrics.AddItems("noop", 1)
}
