// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store outcomes counted by RecordStores. OutcomeHoursIncomplete counts
// written stores whose hours miss a day.
const (
	OutcomeEmitted         = "emitted"
	OutcomeInvalid         = "invalid"
	OutcomeDuplicate       = "duplicate"
	OutcomeWritten         = "written"
	OutcomeHoursIncomplete = "hours_incomplete"
)

// Run statuses.
const (
	RunSuccess = "success"
	RunFailed  = "failed"
)

// MetricsManager owns the Prometheus collectors for crawls. Each manager has
// its own registry so tests and multiple servers never collide.
type MetricsManager struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	storesTotal *prometheus.CounterVec

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runsInFlight   *prometheus.GaugeVec
	lastRunSuccess *prometheus.GaugeVec

	outputDuration *prometheus.HistogramVec
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace       string `json:"namespace"`
	EnableGoMetrics bool   `json:"enable_go_metrics"`
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "storescrapexter"
	}

	reg := prometheus.NewRegistry()
	if config.EnableGoMetrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)
	ns := config.Namespace

	return &MetricsManager{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP request attempts made by spiders",
			},
			[]string{"method", "host", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "host"},
		),
		storesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "spider",
				Name:      "stores_total",
				Help:      "Stores seen per spider by outcome",
			},
			[]string{"spider", "outcome"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "spider",
				Name:      "runs_total",
				Help:      "Completed spider runs by status",
			},
			[]string{"spider", "status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "spider",
				Name:      "run_duration_seconds",
				Help:      "Spider run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"spider"},
		),
		runsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "spider",
				Name:      "runs_in_flight",
				Help:      "Spider runs currently executing",
			},
			[]string{"spider"},
		),
		lastRunSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "spider",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
			[]string{"spider"},
		),
		outputDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "output",
				Name:      "write_duration_seconds",
				Help:      "Time spent writing a run's stores",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"format"},
		),
	}
}

// ObserveRequest records one HTTP request attempt.
func (mm *MetricsManager) ObserveRequest(method, host string, statusCode int, duration time.Duration) {
	mm.requestsTotal.WithLabelValues(method, host, strconv.Itoa(statusCode)).Inc()
	mm.requestDuration.WithLabelValues(method, host).Observe(duration.Seconds())
}

// RecordStores adds count stores with the given outcome.
func (mm *MetricsManager) RecordStores(spider, outcome string, count int) {
	if count <= 0 {
		return
	}
	mm.storesTotal.WithLabelValues(spider, outcome).Add(float64(count))
}

// RecordRunStart marks a run as in flight.
func (mm *MetricsManager) RecordRunStart(spider string) {
	mm.runsInFlight.WithLabelValues(spider).Inc()
}

// RecordRunComplete closes a run started with RecordRunStart.
func (mm *MetricsManager) RecordRunComplete(spider string, duration time.Duration, err error) {
	mm.runsInFlight.WithLabelValues(spider).Dec()
	mm.runDuration.WithLabelValues(spider).Observe(duration.Seconds())
	if err != nil {
		mm.runsTotal.WithLabelValues(spider, RunFailed).Inc()
		return
	}
	mm.runsTotal.WithLabelValues(spider, RunSuccess).Inc()
	mm.lastRunSuccess.WithLabelValues(spider).SetToCurrentTime()
}

// RecordOutput records how long writing took.
func (mm *MetricsManager) RecordOutput(format string, duration time.Duration) {
	mm.outputDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// Registry exposes the underlying registry.
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// MetricsHandler returns the HTTP handler for metrics
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{Registry: mm.registry})
}
