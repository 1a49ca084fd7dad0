package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 上传结果标签取值。
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultInfected = "infected"
)

var (
	uploadRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formbuilder",
			Subsystem: "upload",
			Name:      "requests_total",
			Help:      "上传网关请求总数。",
		},
		[]string{"provider", "result"},
	)

	uploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formbuilder",
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "上传网关请求耗时分布（秒）。",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formbuilder",
			Subsystem: "runtime",
			Name:      "submissions_total",
			Help:      "表单提交总数，按是否通过必填校验区分。",
		},
		[]string{"result"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "formbuilder",
			Subsystem: "runtime",
			Name:      "sessions_active",
			Help:      "当前打开的填写会话数量。",
		},
	)
)

// ObserveUpload 记录一次上传网关调用。
func ObserveUpload(provider, result string, seconds float64) {
	uploadRequestsTotal.WithLabelValues(provider, result).Inc()
	uploadDuration.WithLabelValues(provider).Observe(seconds)
}

// ObserveSubmission 记录一次提交；accepted 为 false 表示必填校验未通过。
func ObserveSubmission(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	submissionsTotal.WithLabelValues(result).Inc()
}

// SessionOpened 与 SessionClosed 维护活跃会话数。
func SessionOpened() { sessionsActive.Inc() }

func SessionClosed() { sessionsActive.Dec() }
