// Package observability holds the process-wide prometheus collectors, the
// tracer provider bootstrap and the slog handler setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "fieldops"

var (
	// TaskTransitionsTotal counts lifecycle operations.
	// Labels: action (create, assign, start, complete, verify, cancel, ...), outcome (ok, error kind)
	TaskTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tasks",
			Name:      "transitions_total",
			Help:      "Task lifecycle operations by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	InventoryMovementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "inventory",
			Name:      "movements_total",
			Help:      "Ledger movements written, by movement type.",
		},
		[]string{"type"},
	)

	LowStockRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "inventory",
			Name:      "low_stock_rejections_total",
			Help:      "Consumptions rejected because stock would go negative.",
		},
	)

	ForcedConsumptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "inventory",
			Name:      "forced_consumptions_total",
			Help:      "Consumptions recorded past available stock with the force flag.",
		},
	)

	HarvestConsolidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "harvest",
			Name:      "consolidations_total",
			Help:      "Harvest consolidations by outcome.",
		},
		[]string{"outcome"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notifications",
			Name:      "dispatched_total",
			Help:      "Notifications dispatched by category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "tasks",
			Name:      "operation_duration_seconds",
			Help:      "Duration of lifecycle operations including their transaction.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)
