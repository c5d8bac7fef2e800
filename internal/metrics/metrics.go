package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for both servers
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// FleetRefreshes counts snapshot refresh outcomes (ok, fetch_failure, malformed_response, stale, closed)
	FleetRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_refreshes_total", Help: "Fleet snapshot refreshes by outcome."},
		[]string{"outcome"},
	)
	// FleetBins is the number of bins in the current snapshot
	FleetBins = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fleet_bins", Help: "Bins in the current fleet snapshot."},
	)
	// FleetBinsBySeverity is the number of bins per severity band
	FleetBinsBySeverity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "fleet_bins_by_severity", Help: "Bins in the current snapshot per severity band."},
		[]string{"band"},
	)
	// RoutesBuilt counts route builds by outcome (ok, not_found)
	RoutesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routes_built_total", Help: "Route builds by outcome."},
		[]string{"outcome"},
	)

	// TelemetryIngested counts POST /telemetry outcomes (ok, rate_limited, error)
	TelemetryIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "telemetry_ingested_total", Help: "Telemetry readings received by outcome."},
		[]string{"outcome"},
	)
	// SuggestedRouteLookups counts suggested route cache lookups (hit, miss)
	SuggestedRouteLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "suggested_route_lookups_total", Help: "Suggested route cache lookups by result."},
		[]string{"result"},
	)
	// AlertsSent counts critical-fill push alerts by status
	AlertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "critical_alerts_total", Help: "Critical fill alerts by status."},
		[]string{"status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors on Registry. Safe to call repeatedly.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(FleetRefreshes)
		Registry.MustRegister(FleetBins)
		Registry.MustRegister(FleetBinsBySeverity)
		Registry.MustRegister(RoutesBuilt)
		Registry.MustRegister(TelemetryIngested)
		Registry.MustRegister(AlertsSent)
		Registry.MustRegister(SuggestedRouteLookups)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
