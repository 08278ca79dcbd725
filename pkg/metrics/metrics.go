// Package metrics exposes Prometheus counters for the client's cache,
// fetch and poll activity.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/circle/cli/pkg/logger"
)

// Metrics holds all Prometheus metrics for the client
type Metrics struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	CacheStaleDiscardsTotal *prometheus.CounterVec

	// Fetch metrics
	FetchDuration    *prometheus.HistogramVec
	FetchErrorsTotal *prometheus.CounterVec

	// Poll metrics
	PollTicksTotal  *prometheus.CounterVec
	PollSubscribers *prometheus.GaugeVec
}

// New creates the metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_cache_hits_total",
				Help: "Cache lookups served from a fresh entry",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_cache_misses_total",
				Help: "Cache lookups that found no entry or an expired one",
			},
			[]string{"cache"},
		),
		CacheStaleDiscardsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_cache_stale_discards_total",
				Help: "Fetch results dropped because a newer result was already applied",
			},
			[]string{"cache"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "circle_fetch_duration_seconds",
				Help:    "Network round-trip latency per resource",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"resource"},
		),
		FetchErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_fetch_errors_total",
				Help: "Failed fetches per resource",
			},
			[]string{"resource"},
		),
		PollTicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circle_poll_ticks_total",
				Help: "Forced refreshes triggered by pollers",
			},
			[]string{"resource"},
		),
		PollSubscribers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circle_poll_subscribers",
				Help: "Views currently subscribed to a poller",
			},
			[]string{"resource"},
		),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ForCache returns a sink for one named cache
func (m *Metrics) ForCache(name string) *CacheSink {
	return &CacheSink{m: m, name: name}
}

// ForResource returns a sink for one named resource
func (m *Metrics) ForResource(name string) *ResourceSink {
	return &ResourceSink{m: m, name: name}
}

// CacheSink records events of a single cache
type CacheSink struct {
	m    *Metrics
	name string
}

func (s *CacheSink) Hit()          { s.m.CacheHitsTotal.WithLabelValues(s.name).Inc() }
func (s *CacheSink) Miss()         { s.m.CacheMissesTotal.WithLabelValues(s.name).Inc() }
func (s *CacheSink) StaleDiscard() { s.m.CacheStaleDiscardsTotal.WithLabelValues(s.name).Inc() }

// ResourceSink records fetch and poll events of a single resource
type ResourceSink struct {
	m    *Metrics
	name string
}

// Fetched records one round-trip
func (s *ResourceSink) Fetched(d time.Duration, err error) {
	s.m.FetchDuration.WithLabelValues(s.name).Observe(d.Seconds())
	if err != nil {
		s.m.FetchErrorsTotal.WithLabelValues(s.name).Inc()
	}
}

// Ticked records one poller tick
func (s *ResourceSink) Ticked() {
	s.m.PollTicksTotal.WithLabelValues(s.name).Inc()
}

// Subscribers records the current subscriber count
func (s *ResourceSink) Subscribers(n int) {
	s.m.PollSubscribers.WithLabelValues(s.name).Set(float64(n))
}
