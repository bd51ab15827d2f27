// internal/pkg/metrics/metrics.go
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Sale metrics
	SalesCreated    *prometheus.CounterVec
	SalesRejected   *prometheus.CounterVec
	SaleRevenue     *prometheus.CounterVec
	SaleDuration    *prometheus.HistogramVec
	LockWait        *prometheus.HistogramVec
	LockTimeouts    prometheus.Counter
	BatchesTotal    *prometheus.CounterVec
	BatchItemsTotal *prometheus.CounterVec

	// Worker metrics
	TasksProcessed *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "salesflow",
	}
}

// New creates a new Metrics instance with its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.SalesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sales_created_total",
			Help:      "Total number of sales committed",
		},
		[]string{"service", "source"},
	)

	m.SalesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sales_rejected_total",
			Help:      "Total number of sales rejected, by reason",
		},
		[]string{"service", "source", "reason"},
	)

	m.SaleRevenue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sale_revenue_total",
			Help:      "Sum of committed sale totals",
		},
		[]string{"service", "source"},
	)

	m.SaleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "sale_duration_seconds",
			Help:      "Time to build and commit a sale",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"service", "source"},
	)

	m.LockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "product_lock_wait_seconds",
			Help:      "Time spent acquiring product locks",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "status"},
	)

	m.LockTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "product_lock_timeouts_total",
			Help:        "Number of lock acquisitions that exceeded the wait bound",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "batches_total",
			Help:      "Total number of reconciled batches",
		},
		[]string{"service", "source", "status"},
	)

	m.BatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "batch_items_total",
			Help:      "Batch entries by outcome",
		},
		[]string{"service", "source", "outcome"},
	)

	m.TasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "tasks_processed_total",
			Help:      "Background tasks processed",
		},
		[]string{"service", "type", "status"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SalesCreated,
		m.SalesRejected,
		m.SaleRevenue,
		m.SaleDuration,
		m.LockWait,
		m.LockTimeouts,
		m.BatchesTotal,
		m.BatchItemsTotal,
		m.TasksProcessed,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// InFlight tracks a request in progress; call the returned func when done
func (m *Metrics) InFlight() func() {
	if m == nil {
		return func() {}
	}
	m.HTTPRequestsInFlight.Inc()
	return m.HTTPRequestsInFlight.Dec
}

// ObserveSale records a committed sale
func (m *Metrics) ObserveSale(source domain.SaleSource, total decimal.Decimal, duration time.Duration) {
	if m == nil {
		return
	}
	m.SalesCreated.WithLabelValues(m.serviceName, string(source)).Inc()
	m.SaleRevenue.WithLabelValues(m.serviceName, string(source)).Add(total.InexactFloat64())
	m.SaleDuration.WithLabelValues(m.serviceName, string(source)).Observe(duration.Seconds())
}

// ObserveSaleFailure records a rejected sale
func (m *Metrics) ObserveSaleFailure(source domain.SaleSource, reason string) {
	if m == nil {
		return
	}
	m.SalesRejected.WithLabelValues(m.serviceName, string(source), reason).Inc()
}

// ObserveLockWait records how long lock acquisition took
func (m *Metrics) ObserveLockWait(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "acquired"
	switch {
	case errors.Is(err, domain.ErrLockTimeout):
		status = "timeout"
		m.LockTimeouts.Inc()
	case err != nil:
		status = "error"
	}
	m.LockWait.WithLabelValues(m.serviceName, status).Observe(d.Seconds())
}

// ObserveBatch records a reconciled batch
func (m *Metrics) ObserveBatch(source domain.SaleSource, status domain.BatchStatus, successes, conflicts int) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(m.serviceName, string(source), string(status)).Inc()
	m.BatchItemsTotal.WithLabelValues(m.serviceName, string(source), "success").Add(float64(successes))
	m.BatchItemsTotal.WithLabelValues(m.serviceName, string(source), "conflict").Add(float64(conflicts))
}

// RecordTask records a processed background task
func (m *Metrics) RecordTask(taskType string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TasksProcessed.WithLabelValues(m.serviceName, taskType, status).Inc()
}
