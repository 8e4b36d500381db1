package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_lookups_total",
			Help: "Total number of webhook adapter calls by operation and outcome.",
		},
		[]string{"operation", "status"}, // status: success, failed
	)

	LookupLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realty_lookup_latency_seconds",
			Help:    "End-to-end adapter latency including retries and backoff.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"operation"},
	)

	UpstreamAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_upstream_attempts_total",
			Help: "Total number of individual webhook HTTP attempts by response code.",
		},
		[]string{"code"}, // "error" when no response was received
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_retries_total",
			Help: "Total number of webhook retries by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, http_4xx, timeout, network
	)

	RetriesExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_retries_exhausted_total",
			Help: "Total number of calls that failed after the last attempt.",
		},
	)

	ProxyResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_proxy_responses_total",
			Help: "Total number of local API responses by route and status code.",
		},
		[]string{"route", "code"},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		LookupsTotal,
		LookupLatencySeconds,
		UpstreamAttemptsTotal,
		RetriesTotal,
		RetriesExhaustedTotal,
		ProxyResponsesTotal,
	)
}

// RecordLookup records the outcome and latency of one adapter operation.
func RecordLookup(operation, status string, latency time.Duration) {
	LookupsTotal.WithLabelValues(operation, status).Inc()
	LookupLatencySeconds.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordUpstreamAttempt counts a single HTTP attempt; code 0 means a transport error.
func RecordUpstreamAttempt(code int) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	UpstreamAttemptsTotal.WithLabelValues(label).Inc()
}

func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

func RecordRetriesExhausted() {
	RetriesExhaustedTotal.Inc()
}

func RecordProxyResponse(route string, code int) {
	ProxyResponsesTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
