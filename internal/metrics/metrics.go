// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "conti"

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SettlementsComputed *prometheus.CounterVec
	SettlementDuration  prometheus.Histogram
	PaymentsPerRoom     prometheus.Histogram
	CacheLookups        *prometheus.CounterVec
	ExpensesRecorded    prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	EventsConsumed      *prometheus.CounterVec
	Exports             *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SettlementsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_computed_total",
			Help:      "Settlement computations by outcome.",
		}, []string{"outcome"}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Time spent loading expenses and computing a settlement.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		PaymentsPerRoom: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_payments",
			Help:      "Number of payments produced per settlement.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_cache_lookups_total",
			Help:      "Settlement cache lookups by result.",
		}, []string{"result"}),
		ExpensesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_recorded_total",
			Help:      "Expenses stored.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "AMQP events published by type and outcome.",
		}, []string{"type", "outcome"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "AMQP events consumed by outcome.",
		}, []string{"outcome"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_exports_total",
			Help:      "Settlement exports by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SettlementsComputed,
		m.SettlementDuration,
		m.PaymentsPerRoom,
		m.CacheLookups,
		m.ExpensesRecorded,
		m.EventsPublished,
		m.EventsConsumed,
		m.Exports,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSettlement records one computation.
func (m *Metrics) ObserveSettlement(d time.Duration, payments int, err error) {
	if err != nil {
		m.SettlementsComputed.WithLabelValues("error").Inc()
		return
	}
	m.SettlementsComputed.WithLabelValues("ok").Inc()
	m.SettlementDuration.Observe(d.Seconds())
	m.PaymentsPerRoom.Observe(float64(payments))
}

func (m *Metrics) CacheHit()  { m.CacheLookups.WithLabelValues("hit").Inc() }
func (m *Metrics) CacheMiss() { m.CacheLookups.WithLabelValues("miss").Inc() }

func (m *Metrics) ObservePublish(eventType string, err error) {
	m.EventsPublished.WithLabelValues(eventType, outcome(err)).Inc()
}

func (m *Metrics) ObserveConsume(err error) {
	m.EventsConsumed.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveExport(err error) {
	m.Exports.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
