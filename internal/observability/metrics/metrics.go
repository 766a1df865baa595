package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for log ingestion and reporting.
type PipelineMetrics struct {
	savedTotal     *prometheus.CounterVec
	fetchedTotal   *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		savedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexa_logger",
			Subsystem: "ingest",
			Name:      "saved_total",
			Help:      "Total interaction records handed to storage",
		}, []string{"mode", "status"}),
		fetchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexa_logger",
			Subsystem: "report",
			Name:      "records_total",
			Help:      "Records seen while building reports, by outcome",
		}, []string{"source", "outcome"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alexa_logger",
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Duration of report generation runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.savedTotal, m.fetchedTotal, m.reportDuration)
	return m
}

// ObserveSave counts one save attempt. mode is "full" or "redacted".
func (m *PipelineMetrics) ObserveSave(mode string, err error) {
	if m == nil {
		return
	}
	m.savedTotal.WithLabelValues(mode, statusLabel(err)).Inc()
}

// ObserveRecords adds n records with the given outcome (kept, skipped, filtered).
func (m *PipelineMetrics) ObserveRecords(source, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fetchedTotal.WithLabelValues(source, outcome).Add(float64(n))
}

func (m *PipelineMetrics) ObserveReport(source string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(source, statusLabel(err)).Observe(seconds)
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
