// Package metrics defines the Prometheus collectors exported by the engine.
// Collectors are package-level and registered once by the metrics server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "entitlement_engine"

var (
	// RestrictionChecks counts gating decisions by action and outcome.
	RestrictionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restriction_checks_total",
			Help:      "Total number of restriction checks",
		},
		[]string{"action", "allowed"},
	)

	// StageProgressions counts engagement stage transitions.
	StageProgressions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engagement_stage_progressions_total",
			Help:      "Total number of engagement stage transitions",
		},
		[]string{"from", "to"},
	)

	// BannerSelections counts which banner was selected as active.
	BannerSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "banner_selections_total",
			Help:      "Total number of active banner selections",
		},
		[]string{"banner_id"},
	)

	// ExperimentAssignments counts variant assignments.
	ExperimentAssignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiment_assignments_total",
			Help:      "Total number of experiment variant assignments",
		},
		[]string{"test_id", "variant_id"},
	)

	// AnalyticsEvents counts analytics events handed to the sink.
	AnalyticsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_total",
			Help:      "Total number of analytics events emitted",
		},
		[]string{"event"},
	)

	// AnalyticsDropped counts events dropped by throttling or sink failures.
	AnalyticsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_dropped_total",
			Help:      "Total number of analytics events dropped",
		},
		[]string{"reason"},
	)

	// ActiveSessions tracks open engine sessions.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open engine sessions",
		},
	)
)

// Collectors returns every engine collector for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RestrictionChecks,
		StageProgressions,
		BannerSelections,
		ExperimentAssignments,
		AnalyticsEvents,
		AnalyticsDropped,
		ActiveSessions,
	}
}
