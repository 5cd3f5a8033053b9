// Package metrics регистрирует Prometheus-метрики шлюза:
//
//	offers_cache_results_total{category,state}
//	offers_rate_limited_total{category}
//	offers_upstream_fetch_total{category,result}
//	offers_upstream_fetch_duration_seconds{category}
//	offers_http_requests_total{route,method,code}
//	offers_http_request_duration_seconds{route,method}
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/internal/service"
)

const namespace = "offers"

// Metrics реализует service.Recorder и метрики HTTP-слоя.
type Metrics struct {
	cacheResults  *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

var _ service.Recorder = (*Metrics)(nil)

// New создаёт метрики и регистрирует их в reg (обычно prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_results_total",
			Help:      "Offer responses by cache state (HIT, MISS, STALE).",
		}, []string{"category", "state"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}, []string{"category"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_total",
			Help:      "Upstream fetches by result.",
		}, []string{"category", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Upstream fetch latency including the fallback attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"category"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.cacheResults,
			m.rateLimited,
			m.fetches,
			m.fetchDuration,
			m.httpRequests,
			m.httpDuration,
		)
	}

	return m
}

func (m *Metrics) CacheResult(c models.Category, state service.State) {
	m.cacheResults.WithLabelValues(c.String(), string(state)).Inc()
}

func (m *Metrics) RateLimited(c models.Category) {
	m.rateLimited.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) UpstreamFetch(c models.Category, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}

	m.fetches.WithLabelValues(c.String(), result).Inc()
	m.fetchDuration.WithLabelValues(c.String()).Observe(d.Seconds())
}

// ObserveHTTP фиксирует завершённый HTTP-запрос. route — шаблон chi
// ("/api/offers/{category}"), а не сырой путь.
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
