package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "codecritic"

// Metrics holds the review pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	submitted     *prometheus.CounterVec
	finished      *prometheus.CounterVec
	engineLatency *prometheus.HistogramVec
	storeFailures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reviews_submitted_total",
			Help:      "number of accepted review submissions",
		}, []string{"language"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reviews_finished_total",
			Help:      "number of reviews that reached a terminal status",
		}, []string{"status"}),
		engineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "engine_duration_seconds",
			Help:      "latency of review engine calls",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "background_store_failures_total",
			Help:      "store writes that failed in the background unit and were not retried",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.submitted, m.finished, m.engineLatency, m.storeFailures)
	return m
}

func (m *Metrics) reviewSubmitted(language string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(language).Inc()
}

func (m *Metrics) reviewFinished(status string) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(status).Inc()
}

func (m *Metrics) observeEngine(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.engineLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) storeFailure(stage string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(stage).Inc()
}

// RegisterQueueDepth exposes the LocalQueue backlog as a gauge.
func RegisterQueueDepth(reg prometheus.Registerer, queue *LocalQueue) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "local_queue_depth",
		Help:      "review tasks waiting in the in-process queue",
	}, func() float64 { return float64(queue.Len()) }))
}
