// Package metrics exposes Prometheus instrumentation for the task
// pipeline: terminal outcomes and attempt counts arrive through task
// events, breaker state is sampled at scrape time.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/events"
)

// Metrics owns the process registry and the task pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	tasksTotal    *prometheus.CounterVec
	attemptsTotal *prometheus.CounterVec
	tasksInFlight *prometheus.GaugeVec
}

// New creates the registry with standard process collectors plus the
// task pipeline metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adforge_tasks_total",
			Help: "Terminal task outcomes by provider and status.",
		}, []string{"provider", "status"}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adforge_task_attempts_total",
			Help: "Provider attempts consumed by finished tasks.",
		}, []string{"provider"}),
		tasksInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adforge_tasks_in_flight",
			Help: "Tasks admitted but not yet terminal.",
		}, []string{"provider"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tasksTotal,
		m.attemptsTotal,
		m.tasksInFlight,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HandleEvent implements events.Handler, updating counters from task
// lifecycle events.
func (m *Metrics) HandleEvent(_ context.Context, event *events.TaskEvent) error {
	switch {
	case event.Status == domain.TaskStatusQueued:
		m.tasksInFlight.WithLabelValues(event.ProviderID).Inc()

	case event.Status.IsTerminal():
		m.tasksInFlight.WithLabelValues(event.ProviderID).Dec()
		m.tasksTotal.WithLabelValues(event.ProviderID, string(event.Status)).Inc()
		m.attemptsTotal.WithLabelValues(event.ProviderID).Add(float64(event.Attempt))
	}
	return nil
}

// HealthSample is one provider's breaker reading at scrape time.
type HealthSample struct {
	ProviderID          string
	BreakerState        string
	ConsecutiveFailures int
	QueueDepth          int
}

// breakerCollector samples provider health on every scrape.
type breakerCollector struct {
	sample func() []HealthSample

	stateDesc    *prometheus.Desc
	failuresDesc *prometheus.Desc
	queueDesc    *prometheus.Desc
}

// RegisterHealth adds a scrape-time collector reading provider health
// through the given callback.
func (m *Metrics) RegisterHealth(sample func() []HealthSample) {
	m.registry.MustRegister(&breakerCollector{
		sample: sample,
		stateDesc: prometheus.NewDesc(
			"adforge_breaker_state",
			"Breaker position per provider: 0 closed, 1 half-open, 2 open.",
			[]string{"provider"}, nil),
		failuresDesc: prometheus.NewDesc(
			"adforge_breaker_consecutive_failures",
			"Consecutive provider failures tracked by the breaker.",
			[]string{"provider"}, nil),
		queueDesc: prometheus.NewDesc(
			"adforge_provider_queue_depth",
			"Tasks waiting in the provider's admission queue.",
			[]string{"provider"}, nil),
	})
}

func (c *breakerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stateDesc
	ch <- c.failuresDesc
	ch <- c.queueDesc
}

func (c *breakerCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.sample() {
		ch <- prometheus.MustNewConstMetric(c.stateDesc, prometheus.GaugeValue, stateValue(s.BreakerState), s.ProviderID)
		ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.GaugeValue, float64(s.ConsecutiveFailures), s.ProviderID)
		ch <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, float64(s.QueueDepth), s.ProviderID)
	}
}

func stateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}
