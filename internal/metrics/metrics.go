package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the sync metrics on its own registry so tests can create
// as many collectors as they like.
type Collector struct {
	registry *prometheus.Registry

	SyncRuns       *prometheus.CounterVec
	EntriesCreated *prometheus.CounterVec
	SyncDuration   *prometheus.HistogramVec
	HTTPRequests   *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync invocations by provider and outcome",
		}, []string{"provider", "outcome"}),
		EntriesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_entries_created_total",
			Help:      "Timeline entries created by sync",
		}, []string{"provider"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of a sync invocation",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
	}
	registry.MustRegister(c.SyncRuns, c.EntriesCreated, c.SyncDuration, c.HTTPRequests)
	return c
}

// ObserveSync records one finished sync. Safe on a nil Collector.
func (c *Collector) ObserveSync(provider, outcome string, created int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.SyncRuns.WithLabelValues(provider, outcome).Inc()
	if created > 0 {
		c.EntriesCreated.WithLabelValues(provider).Add(float64(created))
	}
	c.SyncDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRequest(method, route, status string) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
