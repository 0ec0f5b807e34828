// Package metrics exposes the engine's operational counters and
// histograms via github.com/prometheus/client_golang, collected from
// the dispatcher and harness and served by internal/adminsrv. This is
// ambient observability infrastructure, not one of spec's numbered
// components.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every metric the engine emits under one
// *prometheus.Registry, so a worker process never pollutes the global
// default registry (several workers can run in the same process in
// tests without colliding).
type Registry struct {
	reg *prometheus.Registry

	FilesDispatched  *prometheus.CounterVec
	ScannerDuration  *prometheus.HistogramVec
	ScannerTimeouts  *prometheus.CounterVec
	ScannerCrashes   *prometheus.CounterVec
	RequestsHandled  prometheus.Counter
	RequestTimeouts  prometheus.Counter
	QueueDepthGauge  prometheus.Gauge
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		FilesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filescand",
			Name:      "files_dispatched_total",
			Help:      "Files processed by the dispatcher, labeled by depth bucket.",
		}, []string{"depth"}),
		ScannerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "filescand",
			Name:      "scanner_duration_seconds",
			Help:      "Scanner invocation wall-clock duration, labeled by scanner key.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scanner"}),
		ScannerTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filescand",
			Name:      "scanner_timeouts_total",
			Help:      "Scanner invocations that hit their per-scan deadline (§5.1).",
		}, []string{"scanner"}),
		ScannerCrashes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filescand",
			Name:      "scanner_crashes_total",
			Help:      "Scanner invocations that failed with an uncaught error (§7 ScannerCrash).",
		}, []string{"scanner"}),
		RequestsHandled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "filescand",
			Name:      "requests_handled_total",
			Help:      "Requests for which FIN has been appended.",
		}),
		RequestTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "filescand",
			Name:      "request_timeouts_total",
			Help:      "Requests that hit the whole-request deadline (§7 RequestTimeout).",
		}),
		QueueDepthGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "filescand",
			Name:      "queue_depth",
			Help:      "Most recently observed pending-request count.",
		}),
	}
}

// Gatherer exposes the underlying *prometheus.Registry for
// internal/adminsrv's promhttp handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveScan records one scanner invocation's outcome.
func (r *Registry) ObserveScan(scannerKey string, elapsed time.Duration, timedOut, crashed bool) {
	r.ScannerDuration.WithLabelValues(scannerKey).Observe(elapsed.Seconds())
	if timedOut {
		r.ScannerTimeouts.WithLabelValues(scannerKey).Inc()
	}
	if crashed {
		r.ScannerCrashes.WithLabelValues(scannerKey).Inc()
	}
}

// ObserveFile records one dispatched file at the given tree depth.
func (r *Registry) ObserveFile(depth int) {
	r.FilesDispatched.WithLabelValues(depthBucket(depth)).Inc()
}

// ObserveRequest records one finished request, noting whether it hit
// the request deadline.
func (r *Registry) ObserveRequest(timedOut bool) {
	r.RequestsHandled.Inc()
	if timedOut {
		r.RequestTimeouts.Inc()
	}
}

func depthBucket(depth int) string {
	switch {
	case depth == 0:
		return "0"
	case depth <= 2:
		return "1-2"
	case depth <= 5:
		return "3-5"
	default:
		return "6+"
	}
}
