// Package metrics exposes Prometheus metrics for the trading loop.
//
//   - trader_task_outcomes_total{task,outcome}  orchestrated LLM calls by outcome
//   - trader_decisions_total{action}            decisions proposed by the decide call
//   - trader_downgrades_total{reason}           BUY/SELL converted to HOLD
//   - trader_orders_total{side,result}          orders placed (result: filled|failed)
//   - trader_actions_used{symbol}               actions used today per symbol
//   - trader_cycle_duration_seconds             wall time of one scheduler cycle
//
// Metrics are registered in init() and served at /metrics by the dashboard.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VAnkata19/TraderAI/pkg/decision"
	"github.com/VAnkata19/TraderAI/pkg/task"
)

var (
	mtxTaskOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_task_outcomes_total",
			Help: "Orchestrated tasks by name and outcome",
		},
		[]string{"task", "outcome"},
	)

	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_decisions_total",
			Help: "Decisions proposed",
		},
		[]string{"action"},
	)

	mtxDowngrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_downgrades_total",
			Help: "Actions converted to HOLD, split by reason",
		},
		[]string{"reason"},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders placed",
		},
		[]string{"side", "result"},
	)

	mtxActionsUsed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_actions_used",
			Help: "Actions used today per symbol",
		},
		[]string{"symbol"},
	)

	mtxCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trader_cycle_duration_seconds",
			Help:    "Duration of one evaluation cycle over all tickers",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxTaskOutcomes,
		mtxDecisions,
		mtxDowngrades,
		mtxOrders,
		mtxActionsUsed,
		mtxCycleDuration,
	)
}

// ObserveTask records one orchestrated task result. It matches the
// task.Orchestrator observer signature.
func ObserveTask(r task.Result) {
	mtxTaskOutcomes.WithLabelValues(r.Name, r.Kind.String()).Inc()
}

// ObserveDecision counts a proposed action.
func ObserveDecision(a decision.Action) {
	mtxDecisions.WithLabelValues(a.Lower()).Inc()
}

// ObserveDowngrade counts a downgrade, bucketing the free-form reason.
func ObserveDowngrade(reason string) {
	mtxDowngrades.WithLabelValues(DowngradeLabel(reason)).Inc()
}

// ObserveOrder counts a placed order.
func ObserveOrder(side decision.Action, ok bool) {
	result := "filled"
	if !ok {
		result = "failed"
	}
	mtxOrders.WithLabelValues(side.Lower(), result).Inc()
}

// SetActionsUsed publishes the per-symbol action counters.
func SetActionsUsed(counts map[string]int) {
	for symbol, n := range counts {
		mtxActionsUsed.WithLabelValues(symbol).Set(float64(n))
	}
}

// ObserveCycle records the duration of one cycle.
func ObserveCycle(d time.Duration) {
	mtxCycleDuration.Observe(d.Seconds())
}

// DowngradeLabel maps a downgrade reason to a low-cardinality label.
func DowngradeLabel(reason string) string {
	switch {
	case strings.Contains(reason, "budget exhausted"):
		return "budget_exhausted"
	case strings.Contains(reason, "no position"):
		return "no_position"
	case strings.Contains(reason, "unrecognized"):
		return "unrecognized"
	default:
		return "other"
	}
}
