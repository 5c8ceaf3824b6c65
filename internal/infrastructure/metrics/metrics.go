package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal HTTP 請求數
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP 請求耗時
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recipe_studio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// AICallsTotal 遠端生成呼叫數
	AICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "ai",
			Name:      "calls_total",
			Help:      "Total generation calls by provider, kind and outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)

	// AICallDuration 遠端生成耗時
	AICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recipe_studio",
			Subsystem: "ai",
			Name:      "call_duration_seconds",
			Help:      "Generation call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "kind"},
	)

	// AIRetriesTotal 重試次數
	AIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "ai",
			Name:      "retries_total",
			Help:      "Total retried generation attempts",
		},
		[]string{"provider", "kind"},
	)

	// WorkflowTransitions 生成流程狀態轉換
	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Workflow phase transitions",
		},
		[]string{"phase"},
	)

	// SupersededTotal 被較新操作取代而丟棄的結果
	SupersededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "workflow",
			Name:      "superseded_total",
			Help:      "Completions discarded because a newer operation started",
		},
		[]string{"operation"},
	)

	// CarouselNavigations 頁面切換
	CarouselNavigations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "carousel",
			Name:      "navigations_total",
			Help:      "Active page changes by trigger",
		},
		[]string{"trigger"},
	)

	// ActiveSessions 目前的工作階段數
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recipe_studio",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of live studio sessions",
		},
	)

	// QueueWaiting 等待執行的遠端生成請求
	QueueWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recipe_studio",
			Subsystem: "queue",
			Name:      "waiting",
			Help:      "Generation calls waiting for a worker slot",
		},
	)

	// QueueRejected 隊列已滿而拒絕的請求
	QueueRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "queue",
			Name:      "rejected_total",
			Help:      "Generation calls rejected because the queue was full",
		},
	)

	// SessionEvictions 工作階段淘汰
	SessionEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_studio",
			Subsystem: "session",
			Name:      "evictions_total",
			Help:      "Sessions removed by reason",
		},
		[]string{"reason"},
	)
)

// RecordRequest 記錄 HTTP 請求
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordAICall 記錄一次遠端生成呼叫
func RecordAICall(provider, kind string, err error, durationSec float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	AICallsTotal.WithLabelValues(provider, kind, outcome).Inc()
	AICallDuration.WithLabelValues(provider, kind).Observe(durationSec)
}

// RecordAIRetry 記錄一次重試
func RecordAIRetry(provider, kind string) {
	AIRetriesTotal.WithLabelValues(provider, kind).Inc()
}

// RecordTransition 記錄流程狀態轉換
func RecordTransition(phase string) {
	WorkflowTransitions.WithLabelValues(phase).Inc()
}

// RecordSuperseded 記錄被取代的結果
func RecordSuperseded(operation string) {
	SupersededTotal.WithLabelValues(operation).Inc()
}

// RecordNavigation 記錄頁面切換
func RecordNavigation(trigger string) {
	CarouselNavigations.WithLabelValues(trigger).Inc()
}

// RecordEviction 記錄工作階段淘汰
func RecordEviction(reason string) {
	SessionEvictions.WithLabelValues(reason).Inc()
}
