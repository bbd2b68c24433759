package index

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultLabel = "result"

	resultOK        = "ok"
	resultExhausted = "exhausted"
	resultError     = "error"
)

var (
	inserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadstash_inserts_total",
		Help: "The number of bounding box inserts by outcome.",
	}, []string{
		resultLabel,
	})

	collisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadstash_collisions_total",
		Help: "The number of probes that found the slot occupied.",
	})

	probesPerInsert = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadstash_probes_per_insert",
		Help:    "The number of slots probed by one insert.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	claimLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "quadstash_claim_latency",
		Help: "The time to claim one key slot in the store.",
	})
)

func instrumentInsert(result string, probes int) {
	inserts.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
	probesPerInsert.Observe(float64(probes))
}

func instrumentCollision() {
	collisions.Inc()
}

func instrumentClaimLatency(start time.Time) {
	claimLatency.Observe(time.Since(start).Seconds())
}
