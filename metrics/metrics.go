package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PlansScheduledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "icemor",
		Name:      "compaction_plans_scheduled_total",
		Help:      "Compaction plans written, by table",
	}, []string{"table"})

	OperationsPlannedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "icemor",
		Name:      "compaction_operations_planned_total",
		Help:      "Compaction operations included in a plan, by strategy",
	}, []string{"strategy"})

	FileGroupsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "icemor",
		Name:      "compaction_file_groups_skipped_total",
		Help:      "File groups left out of planning, by reason",
	}, []string{"reason"})

	PlanningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "icemor",
		Name:      "compaction_planning_duration_seconds",
		Help:      "Time to build a compaction plan",
		Buckets:   prometheus.DefBuckets,
	})

	PlannedLogBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "icemor",
		Name:      "compaction_planned_log_bytes",
		Help:      "Total delta log bytes per planned operation",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 12),
	})

	PendingCompactionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icemor",
		Name:      "compaction_plans_completed_total",
		Help:      "Compaction plans marked complete",
	})
)
