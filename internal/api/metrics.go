package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// analyzeRequests counts /analyze calls by outcome (ok, parse_error, bad_request, canceled, error).
	analyzeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pylift_analyze_requests_total",
		Help: "Total analyze requests by result",
	}, []string{"result"})

	// analyzeDuration tracks parse+resolve+analyze latency per request
	analyzeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pylift_analyze_duration_seconds",
		Help:    "Analyze request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// diagnosticsReported counts emitted diagnostics by pattern
	diagnosticsReported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pylift_diagnostics_total",
		Help: "Diagnostics reported by the analyze endpoint, by pattern",
	}, []string{"pattern_id"})

	// matcherFaults counts isolated matcher panics by pattern
	matcherFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pylift_matcher_faults_total",
		Help: "Matcher faults by pattern",
	}, []string{"pattern_id"})
)
