// Package metrics holds the Prometheus collectors for moodify.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestedDocumentsTotal counts committed documents by modality.
	IngestedDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodify_ingested_documents_total",
			Help: "Documents committed to user collections",
		},
		[]string{"modality"},
	)

	// IngestBatchesTotal counts ingestion batches by outcome.
	IngestBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodify_ingest_batches_total",
			Help: "Ingestion batches by outcome",
		},
		[]string{"outcome"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodify_ingest_duration_seconds",
			Help:    "Duration of ingestion batches in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodify_retrieval_duration_seconds",
			Help:    "Duration of semantic retrieval in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AudioJoinMissesTotal counts text hits whose audio document was missing.
	AudioJoinMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodify_audio_join_misses_total",
			Help: "Text hits without a matching audio document",
		},
	)

	// ProviderErrorsTotal counts errors from external providers by provider and kind.
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodify_provider_errors_total",
			Help: "Errors returned by external providers",
		},
		[]string{"provider", "kind"},
	)

	// LyricsLookupsTotal counts lyrics lookups by result (found, not_found, error, skipped).
	LyricsLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodify_lyrics_lookups_total",
			Help: "Lyrics lookups by result",
		},
		[]string{"result"},
	)
)

// ObserveIngest records one finished ingestion batch.
func ObserveIngest(outcome string, textDocs, audioDocs int, d time.Duration) {
	IngestBatchesTotal.WithLabelValues(outcome).Inc()
	IngestDuration.Observe(d.Seconds())
	if textDocs > 0 {
		IngestedDocumentsTotal.WithLabelValues("text").Add(float64(textDocs))
	}
	if audioDocs > 0 {
		IngestedDocumentsTotal.WithLabelValues("audio").Add(float64(audioDocs))
	}
}
