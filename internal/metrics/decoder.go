// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecoderStartTotal counts decoder process starts by result.
	DecoderStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_decoder_start_total",
		Help: "Total number of ffmpeg decoder starts, by result.",
	}, []string{"result"})

	// DecoderExitTotal counts decoder exits by reason.
	DecoderExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_decoder_exit_total",
		Help: "Total number of ffmpeg decoder exits, by reason.",
	}, []string{"reason"})

	// DecoderBytesTotal counts raw bytes read from decoder stdout.
	DecoderBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tempy_decoder_bytes_total",
		Help: "Total raw video bytes read from decoder output.",
	})

	// DecodersRunning tracks decoder processes that have not exited.
	DecodersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tempy_decoders_running",
		Help: "Current number of running ffmpeg decoder processes.",
	})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_proc_terminate_total",
		Help: "Total number of process group signals sent, by signal and outcome.",
	}, []string{"signal", "outcome"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_proc_wait_total",
		Help: "Total number of reaped process groups, by outcome.",
	}, []string{"outcome"})
)

// IncProcTerminate records a termination signal sent to a process group.
func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait records how a terminated process group was reaped.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}

var (
	// AdmissionTotal counts decoder admission decisions by reason.
	AdmissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_admission_total",
		Help: "Decoder admission decisions, by reason.",
	}, []string{"reason"})

	// AdmissionWaitSeconds tracks time spent waiting for a decoder slot.
	AdmissionWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tempy_admission_wait_seconds",
		Help:    "Time spent waiting for decoder admission.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	// DecoderSlotsInUse is the number of granted decoder slots.
	DecoderSlotsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tempy_admission_slots_in_use",
		Help: "Decoder slots currently granted.",
	})

	// CPULoad is the last sampled 1m load average.
	CPULoad = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tempy_admission_cpu_load",
		Help: "Last observed 1 minute load average.",
	})
)
