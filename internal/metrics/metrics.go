// Package metrics exposes pipeline counters and histograms via
// prometheus/client_golang, the teacher's own observability idiom
// generalized from gateway-request metrics to ingestion-pipeline metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the pipeline's metrics behind one Prometheus registerer
// so callers can wire an optional /metrics endpoint without reaching for
// package-level globals.
type Registry struct {
	reg *prometheus.Registry

	BatchesFlushed   prometheus.Counter
	MessagesUpserted prometheus.Counter
	EmbeddingsWritten prometheus.Counter
	ConversationsSkipped prometheus.Counter
	QueryLatency     prometheus.Histogram
}

// New constructs a Registry with all pipeline metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		BatchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convsplit_batches_flushed_total",
			Help: "Number of embedding batches flushed to the database.",
		}),
		MessagesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convsplit_messages_upserted_total",
			Help: "Number of message rows upserted.",
		}),
		EmbeddingsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convsplit_embeddings_written_total",
			Help: "Number of embedding rows upserted.",
		}),
		ConversationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convsplit_conversations_skipped_total",
			Help: "Number of conversations skipped due to unchanged content hash.",
		}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "convsplit_query_latency_seconds",
			Help: "Latency of k-NN query operations.",
		}),
	}
	reg.MustRegister(r.BatchesFlushed, r.MessagesUpserted, r.EmbeddingsWritten, r.ConversationsSkipped, r.QueryLatency)
	return r
}

// Handler returns the HTTP handler to mount at --metrics-addr.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
