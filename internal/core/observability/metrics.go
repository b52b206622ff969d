// Package observability holds the Prometheus collectors for the search
// service and small helpers to update them.
package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/geodata-search/internal/search"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stac_upstream_requests_total",
			Help: "STAC API calls by provider, operation and status.",
		},
		[]string{"provider", "op", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stac_upstream_latency_seconds",
			Help:    "Latency of STAC API calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"provider", "op"},
	)

	tierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_tier_total",
			Help: "Fallback tier runs by outcome.",
		},
		[]string{"provider", "tier", "outcome"},
	)

	tierDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_tier_duration_seconds",
			Help:    "Duration of fallback tier runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"provider", "tier"},
	)

	resolvedItems = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_resolved_items",
			Help:    "Items in a resolved search, by winning tier.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"provider", "tier"},
	)

	filterFootprints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spatial_filter_items_total",
			Help: "Items seen by the spatial filter by outcome.",
		},
		[]string{"outcome"},
	)

	snapshotOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_ops_total",
			Help: "Snapshot store operations by result.",
		},
		[]string{"op", "result"},
	)

	snapshotOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_op_duration_seconds",
			Help:    "Redis latency for snapshot operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_invalidation_events_total",
			Help: "Consumed invalidation events by op and result.",
		},
		[]string{"op", "result"},
	)

	invalidatedSnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_invalidated_total",
			Help: "Snapshots deleted by invalidation events.",
		},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolve_events_total",
			Help: "Resolution events by result.",
		},
		[]string{"result"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamRequestsTotal, upstreamLatencySeconds,
		tierTotal, tierDurationSeconds, resolvedItems,
		filterFootprints,
		snapshotOps, snapshotOpSeconds,
		invalidationsTotal, invalidatedSnapshots,
		eventsTotal,
	}
}

// Init registers the collectors on reg. Registering twice on the same
// registry is not an error.
func Init(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveUpstream records one STAC call; status 0 means a transport error.
func ObserveUpstream(provider, op string, status int, durationSeconds float64) {
	st := "error"
	if status > 0 {
		st = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(provider, op, st).Inc()
	upstreamLatencySeconds.WithLabelValues(provider, op).Observe(durationSeconds)
}

func ObserveFilter(matched, rejected, skipped, noFootprint int) {
	filterFootprints.WithLabelValues("matched").Add(float64(matched))
	filterFootprints.WithLabelValues("rejected").Add(float64(rejected))
	filterFootprints.WithLabelValues("skipped").Add(float64(skipped))
	filterFootprints.WithLabelValues("no_footprint").Add(float64(noFootprint))
}

// ObserveSnapshot records a snapshot op with result "ok", "miss" or "error".
func ObserveSnapshot(op, result string, durationSeconds float64) {
	snapshotOps.WithLabelValues(op, result).Inc()
	snapshotOpSeconds.WithLabelValues(op).Observe(durationSeconds)
}

// ObserveInvalidation records one consumed event; result is "ok", "invalid",
// "duplicate" or "error".
func ObserveInvalidation(op, result string, deleted int) {
	invalidationsTotal.WithLabelValues(op, result).Inc()
	invalidatedSnapshots.Add(float64(deleted))
}

func IncEvent(result string) {
	eventsTotal.WithLabelValues(result).Inc()
}

// SearchObserver feeds tier outcomes into the search_* collectors.
type SearchObserver struct{}

func (SearchObserver) ObserveTier(provider string, tier search.Tier, outcome search.Outcome, _ int, d time.Duration) {
	tierTotal.WithLabelValues(provider, string(tier), string(outcome)).Inc()
	if outcome != search.OutcomeSkipped {
		tierDurationSeconds.WithLabelValues(provider, string(tier)).Observe(d.Seconds())
	}
}

func (SearchObserver) ObserveResolved(provider string, tier search.Tier, items int) {
	resolvedItems.WithLabelValues(provider, string(tier)).Observe(float64(items))
}
