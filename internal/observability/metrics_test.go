package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()

	m.RecordsConsumed.Add(3)
	m.RecordsIngested.WithLabelValues("county").Inc()
	m.RecordsIngested.WithLabelValues("dropped").Add(2)
	m.ReportsWritten.WithLabelValues("xlsx").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsConsumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsIngested.WithLabelValues("county")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsIngested.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsWritten.WithLabelValues("xlsx")))
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()

	require.NoError(t, reg.Register(m.RecordsConsumed))
	require.NoError(t, reg.Register(m.RecordsIngested))
	require.NoError(t, reg.Register(m.PipelineRunning))

	m.PipelineRunning.Set(1)
	m.RecordsIngested.WithLabelValues("unknown").Inc()

	count, err := testutil.GatherAndCount(reg, "covid_etl_records_ingested_total", "covid_etl_pipeline_running")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
