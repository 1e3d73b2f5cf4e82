package prometheus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeTextfile(t *testing.T, c MetricsCollector) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enzbench.prom")
	require.NoError(t, c.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.Error(t, err)
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("rows_total", "rows", "stage").WithLabelValues("join").Add(3)

	out := scrapeTextfile(t, c)
	assert.Contains(t, out, `test_unit_rows_total{stage="join"} 3`)
}

func TestRegisterCounter_Idempotent(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "dup", "k").WithLabelValues("a").Inc()
	c.RegisterCounter("dup_total", "dup", "k").WithLabelValues("a").Inc()

	out := scrapeTextfile(t, c)
	assert.Contains(t, out, `test_unit_dup_total{k="a"} 2`)
}

func TestRegister_TypeMismatchFallsBackToNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("shared", "shared", "k")
	g := c.RegisterGauge("shared", "shared", "k")
	assert.IsType(t, noopGaugeVec{}, g)
	assert.NotPanics(t, func() { g.WithLabelValues("x").Set(1) })
}

func TestRegisterGaugeAndHistogram(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterGauge("mcc", "mcc", "method").WithLabelValues("SIMMER").Set(0.75)
	c.RegisterHistogram("latency_seconds", "latency", []float64{1, 2}, "tool").WithLabelValues("kegg").Observe(1.5)

	out := scrapeTextfile(t, c)
	assert.Contains(t, out, `test_unit_mcc{method="SIMMER"} 0.75`)
	assert.Contains(t, out, `test_unit_latency_seconds_bucket{tool="kegg",le="2"} 1`)
	assert.Contains(t, out, `test_unit_latency_seconds_count{tool="kegg"} 1`)
}

func TestWriteTextfile_EmptyPathIsNoop(t *testing.T) {
	c := newTestCollector(t)
	assert.NoError(t, c.WriteTextfile(""))
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	timer := NewTimer(c.RegisterHistogram("op_seconds", "op", nil, "op").WithLabelValues("x"))
	timer.ObserveDuration()
	assert.Contains(t, scrapeTextfile(t, c), `test_unit_op_seconds_count{op="x"} 1`)

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

func TestPipelineMetrics(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RowsProcessed.WithLabelValues("vote").Add(10)
	m.RowsSkipped.WithLabelValues("evaluate", "no_truth").Inc()
	m.RecordRemote("selenzyme", time.Now(), nil)
	m.RecordRemote("selenzyme", time.Now(), errors.New("503"))
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordRun("join", time.Now())

	out := scrapeTextfile(t, c)
	assert.Contains(t, out, `test_unit_rows_processed_total{stage="vote"} 10`)
	assert.Contains(t, out, `test_unit_rows_skipped_total{reason="no_truth",stage="evaluate"} 1`)
	assert.Contains(t, out, `test_unit_remote_requests_total{outcome="ok",tool="selenzyme"} 1`)
	assert.Contains(t, out, `test_unit_remote_requests_total{outcome="error",tool="selenzyme"} 1`)
	assert.Contains(t, out, `test_unit_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, out, `test_unit_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, out, `test_unit_last_run_timestamp_seconds{command="join"}`)
}

func TestNopPipelineMetrics(t *testing.T) {
	m := NewNopPipelineMetrics()
	assert.NotPanics(t, func() {
		m.RowsProcessed.WithLabelValues("x").Inc()
		m.RecordRemote("kegg", time.Now(), nil)
		m.RecordCache(true)
		m.RecordRun("vote", time.Now())
		m.EvaluationMCC.WithLabelValues("a", "1").Set(1)
	})
}
