// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for tempy.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for extractions. Kept small to avoid cardinality explosion.
const (
	ResultCompleted = "completed"
	ResultShort     = "short"
	ResultFailed    = "failed"
	ResultCanceled  = "canceled"
	ResultInvalid   = "invalid"
	ResultRejected  = "rejected"
)

var (
	// ExtractionsTotal counts finished extractions by result.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_frames_extractions_total",
		Help: "Total number of frame extractions, by result.",
	}, []string{"result"})

	// ExtractionDuration tracks wall time from decoder start to settlement.
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tempy_frames_extraction_duration_seconds",
		Help:    "Time from decoder start until the extraction result settled.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
	}, []string{"result"})

	// ExtractionsInFlight tracks extractions that have not settled yet.
	ExtractionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tempy_frames_extractions_in_flight",
		Help: "Current number of extractions waiting for a result.",
	})

	// FramesEmittedTotal counts frames handed back to callers.
	FramesEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tempy_frames_emitted_total",
		Help: "Total number of frames produced by the pipeline.",
	})

	// UnderDeliveryTotal counts successful extractions that returned fewer frames than requested.
	UnderDeliveryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tempy_frames_under_delivery_total",
		Help: "Total number of extractions that ended before the requested frame count.",
	})

	// SoftCloseTotal counts early decoder stops by outcome.
	SoftCloseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_frames_soft_close_total",
		Help: "Total number of early decoder stop requests, by outcome.",
	}, []string{"outcome"})
)

// RecordExtraction records the terminal outcome of one extraction.
func RecordExtraction(result string, elapsed time.Duration, frames int) {
	ExtractionsTotal.WithLabelValues(result).Inc()
	ExtractionDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	if frames > 0 {
		FramesEmittedTotal.Add(float64(frames))
	}
	if result == ResultShort {
		UnderDeliveryTotal.Inc()
	}
}

// RecordSoftClose records the outcome of a best-effort decoder stop.
func RecordSoftClose(err error) {
	if err != nil {
		SoftCloseTotal.WithLabelValues("error").Inc()
		return
	}
	SoftCloseTotal.WithLabelValues("ok").Inc()
}
