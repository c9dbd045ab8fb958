// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequestsTotal counts result cache lookups by backend and outcome.
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempy_cache_requests_total",
		Help: "Result cache lookups, by backend and result (hit, miss).",
	}, []string{"backend", "result"})

	// CacheCoalescedTotal counts extractions that joined an identical in-flight request.
	CacheCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tempy_cache_coalesced_total",
		Help: "Extractions served by an identical in-flight extraction.",
	})
)
