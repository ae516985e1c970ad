package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики движка ликвидности.
// Дашборды: тик-цикл, запуски pipeline, внешние вызовы, балансы.

// TickDuration - длительность полного тика (опрос + продвижение + оценка)
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Duration of a full engine tick in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	},
)

// RulesEvaluated - количество оценённых правил
var RulesEvaluated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "rules_evaluated_total",
		Help:      "Total number of rule evaluations",
	},
	[]string{"decision"}, // none, deficit, redundancy
)

// PipelinesStarted - запущенные pipeline'ы
var PipelinesStarted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "pipelines_started_total",
		Help:      "Total number of started pipelines",
	},
	[]string{"type"}, // deficit, redundancy
)

// PipelinesFinished - завершённые pipeline'ы
var PipelinesFinished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "pipelines_finished_total",
		Help:      "Total number of finished pipelines",
	},
	[]string{"type", "status"}, // status: completed, failed
)

// ActivePipelines - текущее количество активных pipeline'ов
var ActivePipelines = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "active_pipelines",
		Help:      "Current number of active pipelines",
	},
)

// OrdersLaunched - запущенные ордера по системам
var OrdersLaunched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "orders_launched_total",
		Help:      "Total number of launched orders",
	},
	[]string{"system", "command"},
)

// OrdersFinished - завершённые ордера
var OrdersFinished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "orders_finished_total",
		Help:      "Total number of finished orders",
	},
	[]string{"system", "result"}, // result: success, failed
)

// ExternalCallDuration - длительность вызовов внешних систем
var ExternalCallDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "liquidity",
		Subsystem: "integration",
		Name:      "external_call_duration_seconds",
		Help:      "Duration of external system calls in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"system", "op"}, // op: execute, check_status
)

// AssetBalance - последний известный баланс актива
var AssetBalance = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "asset_balance",
		Help:      "Last known balance per asset",
	},
	[]string{"asset"},
)

// TickPanics - паники, перехваченные в обработке правил
var TickPanics = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "liquidity",
		Subsystem: "engine",
		Name:      "tick_panics_total",
		Help:      "Total number of recovered panics during rule processing",
	},
)
