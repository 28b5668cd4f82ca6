package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workbench/internal/domain"
)

// Collector holds the workbench's Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRows     *prometheus.CounterVec

	ConnectionEvents *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Collector. withRuntime also registers the Go and process collectors.
func New(withRuntime bool) *Collector {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_queries_total",
				Help: "Total number of executed statements",
			},
			[]string{"kind", "status"},
		),
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workbench_query_duration_seconds",
				Help:    "Statement execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		QueryRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_query_rows_total",
				Help: "Total number of rows returned by statements",
			},
			[]string{"kind"},
		),
		ConnectionEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_connection_events_total",
				Help: "Connection registry state changes",
			},
			[]string{"event"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workbench_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Status labels for QueriesTotal.
const (
	StatusSuccess         = "success"
	StatusExecutionError  = "execution_error"
	StatusConnectionError = "connection_error"
	StatusError           = "error"
)

func errorStatus(err error) string {
	var execErr *domain.ExecutionError
	var connErr *domain.ConnectionError
	switch {
	case errors.As(err, &execErr):
		return StatusExecutionError
	case errors.As(err, &connErr):
		return StatusConnectionError
	default:
		return StatusError
	}
}

// Record counts one execution attempt.
func (c *Collector) Record(_ context.Context, a domain.ExecutionAttempt) {
	kind := string(a.Kind)
	if !a.Succeeded() {
		c.QueriesTotal.WithLabelValues(kind, errorStatus(a.Err)).Inc()
		return
	}
	c.QueriesTotal.WithLabelValues(kind, StatusSuccess).Inc()
	c.QueryDuration.WithLabelValues(kind).Observe((time.Duration(a.Result.ExecutionTime) * time.Millisecond).Seconds())
	if n := a.Result.RowCount(); n > 0 {
		c.QueryRows.WithLabelValues(kind).Add(float64(n))
	}
}

// HandleConnectionEvent counts a registry state change.
func (c *Collector) HandleConnectionEvent(ev domain.ConnectionEvent) {
	c.ConnectionEvents.WithLabelValues(string(ev.Kind)).Inc()
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route, status string, d time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
