// Package metrics provides the internal Prometheus collector.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the runtime's Prometheus metrics: model
// lifecycle, turn outcomes, per-stage latency, and pipeline
// transitions.
type Collector struct {
	modelLoadsTotal     *prometheus.CounterVec
	modelLoadDuration   *prometheus.HistogramVec
	modelUnloadsTotal   *prometheus.CounterVec
	turnsTotal          *prometheus.CounterVec
	turnDuration        prometheus.Histogram
	stageDuration       *prometheus.HistogramVec
	pipelineTransitions *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a Collector registered with reg. A nil reg uses
// the default Prometheus registerer; tests pass their own registry to
// avoid duplicate registration.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.modelLoadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Total number of model load attempts",
		},
		[]string{"resource", "status"},
	)

	c.modelLoadDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_duration_seconds",
			Help:      "Model load duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"resource"},
	)

	c.modelUnloadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_unloads_total",
			Help:      "Total number of model unloads",
		},
		[]string{"resource"},
	)

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns by outcome",
		},
		[]string{"status"},
	)

	c.turnDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-stage turn latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"stage", "status"},
	)

	c.pipelineTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_transitions_total",
			Help:      "Audio pipeline state transitions",
		},
		[]string{"from", "to"},
	)

	return c
}

// ObserveLoad implements lifecycle.Observer.
func (c *Collector) ObserveLoad(resource string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	c.modelLoadsTotal.WithLabelValues(resource, status).Inc()
	if success {
		c.modelLoadDuration.WithLabelValues(resource).Observe(d.Seconds())
	}
}

// ObserveUnload implements lifecycle.Observer.
func (c *Collector) ObserveUnload(resource string) {
	c.modelUnloadsTotal.WithLabelValues(resource).Inc()
}

// RecordTurn counts a completed turn by outcome.
func (c *Collector) RecordTurn(status string, d time.Duration) {
	c.turnsTotal.WithLabelValues(status).Inc()
	c.turnDuration.Observe(d.Seconds())
}

// RecordStage records one turn-stage execution.
func (c *Collector) RecordStage(stage string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// RecordPipelineTransition counts one pipeline state transition.
func (c *Collector) RecordPipelineTransition(from, to string) {
	c.pipelineTransitions.WithLabelValues(from, to).Inc()
}
