// Package metrics provides Prometheus metrics for scoring runs. It defines the
// counters, gauges and histograms recorded while a model scores a dataset and
// the rows are exported, and can push them to a Pushgateway when a batch run
// finishes.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for the scorer.
type Metrics struct {
	registry *prometheus.Registry

	// Input metrics
	RowsLoaded    prometheus.Counter // Rows read from the input dataset
	DriftedInputs prometheus.Counter // Features flagged by the drift check

	// Model metrics
	Predictions      prometheus.Counter   // Rows scored
	Failures         prometheus.Counter   // Scoring calls that returned an error
	ModelAge         prometheus.Gauge     // Seconds since the model was trained
	Latency          prometheus.Histogram // Scoring call latency in seconds
	PredictionValues prometheus.Histogram // Distribution of predicted values
	Factors          prometheus.Counter   // Rows for which factors were computed

	// Export metrics
	ExportedRows *prometheus.CounterVec // Rows written, by sink
	ExportErrors *prometheus.CounterVec // Export failures, by sink

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates metrics on a private registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered on registry.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "hcai_rows_loaded_total",
			Help: "Total number of input rows loaded",
		}),
		DriftedInputs: factory.NewCounter(prometheus.CounterOpts{
			Name: "hcai_drifted_features_total",
			Help: "Total number of features flagged by the drift check",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "hcai_predictions_total",
			Help: "Total number of rows scored",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "hcai_prediction_failures_total",
			Help: "Total number of failed scoring calls",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hcai_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hcai_prediction_latency_seconds",
			Help:    "Scoring call latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		PredictionValues: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hcai_prediction_values",
			Help:    "Distribution of predicted values",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		Factors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hcai_factor_rows_total",
			Help: "Total number of rows for which factors were computed",
		}),
		ExportedRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hcai_exported_rows_total",
			Help: "Total number of rows written per sink",
		}, []string{"sink"}),
		ExportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hcai_export_errors_total",
			Help: "Total number of export failures per sink",
		}, []string{"sink"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hcai_errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// Registry exposes the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GetErrorRate returns failed scoring calls per scored row, or 0 before any row was scored.
func (m *Metrics) GetErrorRate() float64 {
	var predictions, failures float64

	metricFamilies, err := m.registry.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "hcai_predictions_total":
			for _, metric := range mf.Metric {
				predictions = metric.GetCounter().GetValue()
			}
		case "hcai_prediction_failures_total":
			for _, metric := range mf.Metric {
				failures = metric.GetCounter().GetValue()
			}
		}
	}

	if predictions == 0 {
		return 0
	}
	return failures / predictions
}

// Push sends the current values to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
