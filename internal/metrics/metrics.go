package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "palisade_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Rate limiting metrics
var (
	RateLimitChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_rate_limit_checks_total",
		Help: "Total number of rate limit admission checks",
	}, []string{"preset", "outcome"})

	CounterStoreFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_counter_store_fallbacks_total",
		Help: "Total number of shared counter store calls served by the local fallback",
	})
)

// Moderation metrics
var (
	ModerationVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_moderation_verdicts_total",
		Help: "Total number of moderation verdicts by source and outcome",
	}, []string{"source", "violation"})

	ClassifierCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_classifier_calls_total",
		Help: "Total number of external classifier invocations",
	}, []string{"status"})

	ClassifierQuotaExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_classifier_quota_exhausted_total",
		Help: "Total number of moderation requests routed past the classifier due to quota exhaustion",
	})

	ClassifierQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palisade_classifier_quota_remaining",
		Help: "Remaining classifier calls in the current daily quota window",
	})
)

// Enforcement metrics
var (
	StrikesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_strikes_total",
		Help: "Total number of strikes recorded",
	}, []string{"type"})

	SuspensionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_suspensions_total",
		Help: "Total number of account suspension transitions",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_notifications_total",
		Help: "Total number of notification delivery attempts",
	}, []string{"kind", "status"})
)

// NormalizePath reduces high-cardinality path labels by replacing dynamic
// segments with placeholders. This keeps the metric label space bounded.
func NormalizePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) < 2 {
		return path
	}

	if segments[0] == "api" {
		switch segments[1] {
		case "sanctions", "strikes":
			if len(segments) == 3 {
				return "/api/" + segments[1] + "/:actor"
			}
		}
	}

	return path
}
