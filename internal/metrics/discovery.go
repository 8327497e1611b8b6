// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dialQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialwatch_dial_queries_total",
		Help: "DIAL app info queries issued to sinks by outcome",
	}, []string{"outcome"}) // outcome=success|not_found|error

	appStatusCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialwatch_app_status_cache_total",
		Help: "Per (sink, app) cache decisions",
	}, []string{"result"}) // result=hit|miss

	dedupJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialwatch_dial_query_dedup_joins_total",
		Help: "Callers that received a DIAL query result shared with another caller",
	})

	scanCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialwatch_scan_cycles_total",
		Help: "Completed app discovery scan cycles",
	})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dialwatch_scan_duration_seconds",
		Help:    "Wall time of one settle-all scan cycle",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	appStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialwatch_app_status_changes_total",
		Help: "App status transitions reported to the sink registry",
	}, []string{"app", "status"})

	capabilityDowngradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialwatch_sink_capability_downgrades_total",
		Help: "Sinks marked as not supporting app availability after a failed query",
	})

	activitiesRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialwatch_activities_removed_total",
		Help: "Activities removed by reconciliation",
	}, []string{"reason"}) // reason=not_running|query_failed

	registeredApps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dialwatch_registered_apps",
		Help: "Number of app names registered for discovery",
	})

	sinksKnown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dialwatch_sinks",
		Help: "Number of sinks in the registry",
	})

	activitiesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dialwatch_activities",
		Help: "Number of tracked activities",
	})

	ssdpResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialwatch_ssdp_responses_total",
		Help: "SSDP search responses by outcome",
	}, []string{"outcome"}) // outcome=accepted|rejected|skipped
)

// RecordDialQuery counts one network query by outcome.
func RecordDialQuery(outcome string) {
	dialQueriesTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheDecision counts a cache hit (true) or miss (false).
func RecordCacheDecision(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	appStatusCacheTotal.WithLabelValues(result).Inc()
}

func RecordDedupJoin() {
	dedupJoinsTotal.Inc()
}

// ObserveScan records a finished scan cycle.
func ObserveScan(d time.Duration) {
	scanCyclesTotal.Inc()
	scanDuration.Observe(d.Seconds())
}

func RecordAppStatusChange(app, status string) {
	appStatusChangesTotal.WithLabelValues(app, status).Inc()
}

func RecordCapabilityDowngrade() {
	capabilityDowngradesTotal.Inc()
}

func RecordActivityRemoved(reason string) {
	activitiesRemovedTotal.WithLabelValues(reason).Inc()
}

func SetRegisteredApps(n int) {
	registeredApps.Set(float64(n))
}

func SetSinksKnown(n int) {
	sinksKnown.Set(float64(n))
}

func SetActivitiesTracked(n int) {
	activitiesTracked.Set(float64(n))
}

func RecordSSDPResponse(outcome string) {
	ssdpResponsesTotal.WithLabelValues(outcome).Inc()
}
