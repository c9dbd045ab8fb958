// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LibraryProbeTotal counts metadata lookups by result (indexed, probed, error).
	LibraryProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_library_probe_total",
		Help: "Video metadata lookups, by result.",
	}, []string{"result"})

	// LibraryResolveRejectedTotal counts filenames refused by the catalog.
	LibraryResolveRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_library_resolve_rejected_total",
		Help: "Filenames rejected during resolution, by reason (invalid, not_found).",
	}, []string{"reason"})

	// LibraryInvalidationsTotal counts files dropped from the index after a change on disk.
	LibraryInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tempy_library_invalidations_total",
		Help: "Files invalidated by the catalog watcher.",
	})

	// LibraryVideos is the number of videos seen by the last scan.
	LibraryVideos = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tempy_library_videos",
		Help: "Videos found by the last catalog scan.",
	})
)
