// Package metrics defines and registers all custom Prometheus metrics for the
// counting sync API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry through
// promauto on package initialisation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "counting"

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionsCreatedTotal counts newly opened sessions.
// Label:
//   - mode: "INDIVIDUAL" or "MULTIPLAYER"
var SessionsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Total number of counting sessions created, by mode.",
	},
	[]string{"mode"},
)

// JoinFailuresTotal counts rejected join attempts.
// Label:
//   - reason: "invalid_code", "full" or "rate_limited"
var JoinFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "join_failures_total",
		Help:      "Total number of rejected join attempts, by reason.",
	},
	[]string{"reason"},
)

var SessionsFinalizedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_finalized_total",
		Help:      "Total number of sessions that reached FINALIZED.",
	},
)

// ── Ledger metrics ────────────────────────────────────────────────────────────

var MovementsAcceptedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "movements_accepted_total",
		Help:      "Total number of movements newly appended to the ledger.",
	},
)

// MovementsDuplicateTotal counts resubmitted movements that were already stored.
var MovementsDuplicateTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "movements_duplicate_total",
		Help:      "Total number of resubmitted movements skipped by client id.",
	},
)

// MovementsRejectedTotal counts batches refused by the ledger.
// Label:
//   - reason: e.g. "session_closed"
var MovementsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "movements_rejected_total",
		Help:      "Total number of sync batches rejected, by reason.",
	},
	[]string{"reason"},
)

var SyncBatchSize = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_batch_size",
		Help:      "Number of movements per accepted sync batch.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	},
)

// AggregateCacheTotal counts aggregate cache lookups.
// Label:
//   - result: "hit" or "miss"
var AggregateCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregate_cache_total",
		Help:      "Total number of aggregate cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Report metrics ────────────────────────────────────────────────────────────

var ReportBuildDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "report_build_duration_seconds",
		Help:      "Duration of reading the ledger and storing the reconciliation report.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ReportFailuresTotal counts finalized sessions left without a report.
var ReportFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_failures_total",
		Help:      "Total number of report builds that failed after finalization.",
	},
)

// FinalizeDrainTimeoutsTotal counts finalizations left CLOSING because
// writers still held leases when the drain timeout ran out.
var FinalizeDrainTimeoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "finalize_drain_timeouts_total",
		Help:      "Total number of finalizations that timed out waiting for in-flight writes.",
	},
)

// RetentionPurgedTotal counts ledger movements removed by the retention job.
var RetentionPurgedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retention_purged_movements_total",
		Help:      "Total number of movements deleted by the retention purge.",
	},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsPublishedTotal counts lifecycle events handed to the broker.
// Label:
//   - type: event type (e.g. "session.finalized")
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of session events published.",
	},
	[]string{"type"},
)

// EventsErrorsTotal counts events that could not be delivered.
// Label:
//   - reason: "publish_failed" or "queue_full"
var EventsErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_errors_total",
		Help:      "Total number of session events that failed delivery.",
	},
	[]string{"reason"},
)

// EventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
