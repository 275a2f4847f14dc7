// Package metrics exposes Prometheus collectors for the blog API.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"blog/internal/apperr"
)

const namespace = "blog"

type Metrics struct {
	registry *prometheus.Registry

	mutations       *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	subscriptions   prometheus.Gauge
	httpDuration    *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "GraphQL mutations by operation and outcome code.",
		}, []string{"operation", "outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Change notifications published, by topic kind and mutation type.",
		}, []string{"topic", "mutation"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Change notifications dropped because a subscriber buffer was full.",
		}, []string{"topic"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Live subscriptions on the notification bus.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.mutations,
		m.eventsPublished,
		m.eventsDropped,
		m.subscriptions,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is what /metrics serves.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// topicKind keeps label cardinality bounded: "comment:<id>" counts as "comment".
func topicKind(topic string) string {
	kind, _, _ := strings.Cut(topic, ":")
	return kind
}

func (m *Metrics) ObserveMutation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) EventPublished(topic, mutation string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topicKind(topic), mutation).Inc()
}

func (m *Metrics) EventDropped(topic string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(topicKind(topic)).Inc()
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}

func (m *Metrics) ObserveHTTP(route string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
