package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderMetrics 订单引擎核心指标：下单/取消成功数、按原因分类的失败数、锁等待耗时。
// 所有方法对 nil 接收者安全，测试环境可不接指标。
type OrderMetrics struct {
	placed    prometheus.Counter
	cancelled prometheus.Counter
	failed    *prometheus.CounterVec
	lockWait  prometheus.Histogram
}

func NewOrderMetrics() *OrderMetrics {
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shopping_mall",
		Subsystem: "order",
		Name:      "placed_total",
		Help:      "Total number of successfully placed orders.",
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shopping_mall",
		Subsystem: "order",
		Name:      "cancelled_total",
		Help:      "Total number of successfully cancelled orders.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopping_mall",
		Subsystem: "order",
		Name:      "failed_total",
		Help:      "Total number of failed order operations by reason.",
	}, []string{"reason"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shopping_mall",
		Subsystem: "order",
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting for product stock locks.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	prometheus.MustRegister(placed, cancelled, failed, lockWait)
	return &OrderMetrics{placed: placed, cancelled: cancelled, failed: failed, lockWait: lockWait}
}

func (m *OrderMetrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.placed.Inc()
}

func (m *OrderMetrics) OrderCancelled() {
	if m == nil {
		return
	}
	m.cancelled.Inc()
}

func (m *OrderMetrics) OrderFailed(reason string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(reason).Inc()
}

func (m *OrderMetrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

// Handler 暴露 /metrics。
func Handler() http.Handler {
	return promhttp.Handler()
}
