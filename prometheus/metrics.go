package prometheus

import (
	"time"

	"waterbilling-service/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Usage entry metrics
	UsageOperationsCounter prometheus.CounterVec

	// Duplicate submissions refused by the writer
	DuplicateEntriesCounter prometheus.Counter

	// Baseline resolutions that fell back to the tenant's initial readings
	BaselineFallbackCounter prometheus.Counter

	// Logged entries per tenant
	EntriesPerTenantGauge prometheus.GaugeVec

	// Active tenants known to the billing service
	ActiveTenantsGauge prometheus.Gauge
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Database operation metrics
	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Usage entry metrics
	UsageOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total number of usage entry operations",
		},
		[]string{"operation"},
	)

	DuplicateEntriesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_duplicate_entries_total",
			Help: "Total number of submissions refused because the tenant/month entry already exists",
		},
	)

	BaselineFallbackCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_baseline_initial_fallback_total",
			Help: "Total number of baseline resolutions that used the tenant's initial readings",
		},
	)

	EntriesPerTenantGauge = *promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_entries_per_tenant",
			Help: "Number of logged usage entries per tenant",
		},
		[]string{"tenant_name"},
	)

	ActiveTenantsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_active_tenants",
			Help: "Number of active tenants",
		},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordUsageOperation increments the counter for usage entry operations
func RecordUsageOperation(operation string) {
	UsageOperationsCounter.WithLabelValues(operation).Inc()
}

// UpdateEntriesPerTenant updates the gauge for logged entries per tenant
func UpdateEntriesPerTenant(tenantName string, count int) {
	EntriesPerTenantGauge.WithLabelValues(tenantName).Set(float64(count))
}

// UpdateActiveTenants updates the active tenants gauge
func UpdateActiveTenants(count int) {
	ActiveTenantsGauge.Set(float64(count))
}
