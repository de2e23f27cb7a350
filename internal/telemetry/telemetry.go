// Package telemetry exports Prometheus metrics for detection, classification
// and training.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "product_detector"

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	PagesProcessed     *prometheus.CounterVec
	SegmentsDetected   prometheus.Histogram
	SegmentsAccepted   *prometheus.CounterVec
	ClassifierFailures *prometheus.CounterVec
	Duration           *prometheus.HistogramVec

	TrainingRows  *prometheus.CounterVec
	ModelAccuracy *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass a fresh registry in tests to
// avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PagesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "Pages run through the pipeline, by operation and outcome",
		}, []string{"operation", "outcome"}),
		SegmentsDetected: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segments_per_page",
			Help:      "Minimal product containers found per page",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		}),
		SegmentsAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_accepted_total",
			Help:      "Segments labelled as products, by classifier",
		}, []string{"classifier"}),
		ClassifierFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_failures_total",
			Help:      "Classifier invocations that failed, by classifier",
		}, []string{"classifier"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent per page, by operation",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		TrainingRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_rows_total",
			Help:      "Training rows handled by the extractor, by outcome",
		}, []string{"outcome"}),
		ModelAccuracy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Held-out accuracy of the last training run, by classifier",
		}, []string{"classifier"}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordPage(operation string, err error, segments int, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PagesProcessed.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(d.Seconds())
	if err == nil {
		m.SegmentsDetected.Observe(float64(segments))
	}
}

func (m *Metrics) RecordClassifier(name string, accepted int, failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.ClassifierFailures.WithLabelValues(name).Inc()
		return
	}
	m.SegmentsAccepted.WithLabelValues(name).Add(float64(accepted))
}

func (m *Metrics) RecordTrainingRow(skipped bool) {
	if m == nil {
		return
	}
	if skipped {
		m.TrainingRows.WithLabelValues("skipped").Inc()
		return
	}
	m.TrainingRows.WithLabelValues("extracted").Inc()
}

func (m *Metrics) SetAccuracy(name string, accuracy float64) {
	if m == nil {
		return
	}
	m.ModelAccuracy.WithLabelValues(name).Set(accuracy)
}
