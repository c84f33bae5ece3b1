// Package metrics exposes Prometheus instrumentation for the pipeline and
// the ingress gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesProcessed counts finalized queue entries by terminal outcome
	// (success, unauthenticated, uninterpretable, dead_letter).
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biabot",
		Name:      "messages_processed_total",
		Help:      "Finalized queue entries by terminal outcome.",
	}, []string{"outcome"})

	// StageFailures counts pipeline stage failures by stage name.
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biabot",
		Name:      "stage_failures_total",
		Help:      "Pipeline stage failures by stage.",
	}, []string{"stage"})

	// ProcessingSeconds observes end-to-end pipeline latency per message.
	ProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "biabot",
		Name:      "processing_seconds",
		Help:      "End-to-end message processing duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// EventsPublished counts inbound events accepted by the gateway.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biabot",
		Name:      "events_published_total",
		Help:      "Inbound events published to the work queue by source.",
	}, []string{"source"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
