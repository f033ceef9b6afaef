// Package metrics provides Prometheus metrics for the session and tracking core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal counts token refresh attempts that reached the network, by outcome.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiddiebus",
			Name:      "token_refresh_total",
			Help:      "Total number of token refresh calls",
		},
		[]string{"outcome"},
	)

	// RefreshShared counts callers that attached to a refresh started by someone else.
	RefreshShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kiddiebus",
			Name:      "token_refresh_shared_total",
			Help:      "Total number of callers that reused an in-flight or completed refresh",
		},
	)

	// PollTotal counts location fetches by outcome.
	PollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiddiebus",
			Name:      "location_poll_total",
			Help:      "Total number of bus location fetches",
		},
		[]string{"outcome"},
	)

	// ActivePollers tracks running polling loops.
	ActivePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiddiebus",
			Name:      "location_pollers_active",
			Help:      "Number of active polling loops",
		},
	)

	// MapLoads counts map library load attempts by outcome.
	MapLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiddiebus",
			Name:      "map_library_loads_total",
			Help:      "Total number of map library load attempts",
		},
		[]string{"outcome"},
	)
)

// RecordRefresh records a refresh call that went to the server.
func RecordRefresh(err error) {
	RefreshTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordPoll records a location fetch.
func RecordPoll(err error) {
	PollTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordMapLoad records a map library load attempt.
func RecordMapLoad(err error) {
	MapLoads.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
