// Package observability exposes Prometheus metrics for sync runs.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsInsertedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aw_garmin",
		Subsystem: "sync",
		Name:      "events_inserted_total",
		Help:      "Number of events written to the downstream store, per stream.",
	}, []string{"stream"})

	eventsSkippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aw_garmin",
		Subsystem: "sync",
		Name:      "events_skipped_total",
		Help:      "Number of normalized events dropped because they end at or before the watermark.",
	}, []string{"stream"})

	watermarkGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aw_garmin",
		Subsystem: "sync",
		Name:      "watermark_timestamp_seconds",
		Help:      "Unix timestamp of the committed watermark per stream.",
	}, []string{"stream"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aw_garmin",
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Wall time of complete sync runs, successful or not.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aw_garmin",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Number of sync runs grouped by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(eventsInsertedCounter, eventsSkippedCounter, watermarkGauge, runDuration, runsCounter)
}

// RecordInserted counts events written downstream for stream.
func RecordInserted(stream string, n int) {
	if n <= 0 {
		return
	}
	eventsInsertedCounter.WithLabelValues(stream).Add(float64(n))
}

// RecordSkipped counts events filtered out by the watermark.
func RecordSkipped(stream string, n int) {
	if n <= 0 {
		return
	}
	eventsSkippedCounter.WithLabelValues(stream).Add(float64(n))
}

// RecordWatermark updates the watermark gauge for stream.
func RecordWatermark(stream string, ts *time.Time) {
	if ts == nil || ts.IsZero() {
		return
	}
	watermarkGauge.WithLabelValues(stream).Set(float64(ts.Unix()))
}

// RecordRun observes a finished run.
func RecordRun(started time.Time, err error) {
	runDuration.Observe(time.Since(started).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	runsCounter.WithLabelValues(outcome).Inc()
}
