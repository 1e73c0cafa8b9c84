package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rnd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 项目编码分配计数
	CodesAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rnd_project_codes_allocated_total",
			Help: "Total number of project codes allocated",
		},
		[]string{"backend"}, // backend: db, redis
	)

	// 阶段推进计数
	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rnd_stage_transitions_total",
			Help: "Stage advance attempts by target stage and outcome",
		},
		[]string{"to", "result"}, // result: ok, terminal, gate_unsatisfied
	)

	// 核价审批计数
	CostApprovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rnd_cost_approvals_total",
			Help: "Cost approvals by outcome",
		},
		[]string{"result", "over_target"},
	)
)

// RecordHTTPRequest 记录 HTTP 请求延迟
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncCodeAllocated 记录一次编码分配
func IncCodeAllocated(backend string) {
	CodesAllocated.WithLabelValues(backend).Inc()
}

// IncStageTransition 记录一次阶段推进
func IncStageTransition(to, result string) {
	StageTransitions.WithLabelValues(to, result).Inc()
}

// IncCostApproval 记录一次核价审批
func IncCostApproval(result string, overTarget bool) {
	over := "false"
	if overTarget {
		over = "true"
	}
	CostApprovals.WithLabelValues(result, over).Inc()
}
