package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace       = "ecowatch"
	ingestSubsystem = "ingest"
	cacheSubsystem  = "cache"
	reportSubsystem = "reports"
)

// Ingestion results used for the result label
const (
	ResultAccepted           = "accepted"
	ResultInvalid            = "invalid"
	ResultMalformedTimestamp = "malformed_timestamp"
)

// Source error reasons used for the reason label
const (
	ReasonUnavailable = "unavailable"
	ReasonCanceled    = "canceled"
	ReasonError       = "error"
)

var (
	// IngestedReadings counts raw readings seen by the ingestion pipeline
	IngestedReadings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: ingestSubsystem,
			Name:      "readings_total",
			Help:      "Raw readings processed by the ingestion pipeline by source and result",
		},
		[]string{"source", "result"}, // result: "accepted", "invalid", "malformed_timestamp"
	)

	// SourceErrors counts source reads that failed as a whole
	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: ingestSubsystem,
			Name:      "source_errors_total",
			Help:      "Source reads that returned no readings because of an error, by source and reason",
		},
		[]string{"source", "reason"}, // reason: "unavailable", "canceled", "error"
	)

	// CacheRecords is the number of records retained in the window after the last mutation
	CacheRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: cacheSubsystem,
			Name:      "records",
			Help:      "Records retained in the time window as of the last insert",
		},
	)

	// CacheEvicted counts records dropped by TTL pruning
	CacheEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: cacheSubsystem,
			Name:      "evicted_total",
			Help:      "Records evicted from the time window because they fell behind the TTL",
		},
	)

	// ReportsWritten counts report files written by report name
	ReportsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: reportSubsystem,
			Name:      "written_total",
			Help:      "Report files written to the output directory",
		},
		[]string{"report"},
	)

	registerOnce sync.Once
)

// Register adds all collectors to the default prometheus registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			IngestedReadings,
			SourceErrors,
			CacheRecords,
			CacheEvicted,
			ReportsWritten,
		)
	})
}
