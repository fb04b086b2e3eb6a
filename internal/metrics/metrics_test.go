package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RunStarted()
	m.RunStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveRuns))

	for i := 0; i < 5; i++ {
		m.GenerationCompleted()
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(m.GenerationsTotal))

	m.RunFinished("completed", 1.5, 42)
	m.RunFinished("failed", 0.2, 999)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("failed")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.LastBestCost))

	count, err := testutil.GatherAndCount(reg, "coverga_runs_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilRunMetricsIsNoop(t *testing.T) {
	var m *RunMetrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.GenerationCompleted()
		m.RunFinished("completed", 1, 1)
	})
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
