package prometheus

import "time"

// Outcome label values for remote requests.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// PipelineMetrics holds the counters and histograms every enzbench job reports.
type PipelineMetrics struct {
	RowsProcessed      CounterVec   // stage
	RowsSkipped        CounterVec   // stage, reason
	RemoteRequests     CounterVec   // tool, outcome
	RemoteLatency      HistogramVec // tool
	CacheLookups       CounterVec   // result
	StepDuration       HistogramVec // step
	EvaluationMCC      GaugeVec     // method, depth
	EvaluationCoverage GaugeVec     // method, depth
	LastRunTimestamp   GaugeVec     // command
}

// NewPipelineMetrics registers the pipeline metrics on collector.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	return &PipelineMetrics{
		RowsProcessed:      collector.RegisterCounter("rows_processed_total", "Rows processed by a pipeline stage.", "stage"),
		RowsSkipped:        collector.RegisterCounter("rows_skipped_total", "Rows skipped by a pipeline stage.", "stage", "reason"),
		RemoteRequests:     collector.RegisterCounter("remote_requests_total", "Requests sent to remote prediction tools.", "tool", "outcome"),
		RemoteLatency:      collector.RegisterHistogram("remote_request_duration_seconds", "Latency of remote tool requests.", nil, "tool"),
		CacheLookups:       collector.RegisterCounter("cache_lookups_total", "Response cache lookups.", "result"),
		StepDuration:       collector.RegisterHistogram("step_duration_seconds", "Duration of pipeline steps.", []float64{.1, 1, 10, 60, 300, 1800, 3600}, "step"),
		EvaluationMCC:      collector.RegisterGauge("evaluation_mcc", "Support-weighted MCC of a method.", "method", "depth"),
		EvaluationCoverage: collector.RegisterGauge("evaluation_coverage", "Share of rows with a prediction.", "method", "depth"),
		LastRunTimestamp:   collector.RegisterGauge("last_run_timestamp_seconds", "Unix time of the last completed command.", "command"),
	}
}

// NewNopPipelineMetrics returns metrics that discard every observation.
func NewNopPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		RowsProcessed:      noopCounterVec{},
		RowsSkipped:        noopCounterVec{},
		RemoteRequests:     noopCounterVec{},
		RemoteLatency:      noopHistogramVec{},
		CacheLookups:       noopCounterVec{},
		StepDuration:       noopHistogramVec{},
		EvaluationMCC:      noopGaugeVec{},
		EvaluationCoverage: noopGaugeVec{},
		LastRunTimestamp:   noopGaugeVec{},
	}
}

// RecordRemote records one remote request for tool.
func (m *PipelineMetrics) RecordRemote(tool string, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.RemoteRequests.WithLabelValues(tool, outcome).Inc()
	m.RemoteLatency.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}

// RecordCache records a cache hit or miss.
func (m *PipelineMetrics) RecordCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordRun marks command as completed now.
func (m *PipelineMetrics) RecordRun(command string, start time.Time) {
	m.StepDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	m.LastRunTimestamp.WithLabelValues(command).Set(float64(time.Now().Unix()))
}
