// Package metrics holds the Prometheus collectors of the document pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes.
const (
	OutcomeCreated        = "created"
	OutcomeExactDuplicate = "exact_duplicate"
)

// OCR job results.
const (
	OCRProcessed = "processed"
	OCRFailed    = "failed"
	OCRRetried   = "retried"
)

// Metrics tracks uploads, analyses and OCR jobs. A nil *Metrics records
// nothing.
type Metrics struct {
	Uploads          *prometheus.CounterVec
	Analyses         *prometheus.CounterVec
	ManualReviews    prometheus.Counter
	Anomalies        *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	OCRJobs          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paperasse_uploads_total",
			Help: "Document uploads by outcome",
		}, []string{"outcome"}),
		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paperasse_analyses_total",
			Help: "Document analyses by resulting document type",
		}, []string{"type"}),
		ManualReviews: f.NewCounter(prometheus.CounterOpts{
			Name: "paperasse_manual_reviews_total",
			Help: "Analyses flagged for manual review",
		}),
		Anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paperasse_anomalies_total",
			Help: "Anomaly flags raised by the analyzer",
		}, []string{"anomaly"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "paperasse_analysis_duration_seconds",
			Help:    "Duration of a classification pass including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		OCRJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paperasse_ocr_jobs_total",
			Help: "OCR jobs by result",
		}, []string{"result"}),
	}
}

// RegisterQueueDepth exposes the job queue length through fn.
func RegisterQueueDepth(reg prometheus.Registerer, fn func() float64) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "paperasse_job_queue_depth",
		Help: "Jobs waiting or in flight in the document queue",
	}, fn)
}

// IncUpload records an upload outcome.
func (m *Metrics) IncUpload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}

// ObserveAnalysis records a finished classification pass.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAnalysis(docType string, anomalies []string, review bool, start time.Time) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(docType).Inc()
	for _, a := range anomalies {
		m.Anomalies.WithLabelValues(a).Inc()
	}
	if review {
		m.ManualReviews.Inc()
	}
	m.AnalysisDuration.Observe(time.Since(start).Seconds())
}

// IncOCRJob records an OCR job result.
func (m *Metrics) IncOCRJob(result string) {
	if m == nil {
		return
	}
	m.OCRJobs.WithLabelValues(result).Inc()
}
