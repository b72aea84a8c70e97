package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
// 所有方法对 nil 接收者安全，未调用 Init 时 (例如单元测试) 直接忽略
type BusinessMetrics struct {
	OpenTotal            *prometheus.CounterVec
	MintAttemptTotal     *prometheus.CounterVec
	MintDuration         *prometheus.HistogramVec
	DispatcherDropped    *prometheus.CounterVec
	ReconcileProcessed   *prometheus.CounterVec
	RelaySentTotal       *prometheus.CounterVec
	ReconcileRunDuration prometheus.Histogram
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		OpenTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blindbox_open_total",
			Help: "Open box requests by result",
		}, []string{"result"}),
		MintAttemptTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blindbox_mint_attempt_total",
			Help: "Mint attempts against the chain gateway",
		}, []string{"chain", "result"}),
		MintDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blindbox_mint_duration_seconds",
			Help:    "Duration of chain gateway mint calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain"}),
		DispatcherDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blindbox_dispatcher_dropped_total",
			Help: "Events dropped because the dispatcher queue was full",
		}, []string{"topic"}),
		ReconcileProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blindbox_reconcile_processed_total",
			Help: "Collectibles visited by the reconcile job",
		}, []string{"result"}),
		RelaySentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blindbox_relay_sent_total",
			Help: "Outbox messages relayed to the message queue",
		}, []string{"topic"}),
		ReconcileRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "blindbox_reconcile_run_duration_seconds",
			Help:    "Duration of a reconcile run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *BusinessMetrics) ObserveOpen(result string) {
	if m == nil {
		return
	}
	m.OpenTotal.WithLabelValues(result).Inc()
}

func (m *BusinessMetrics) ObserveMint(chain, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.MintAttemptTotal.WithLabelValues(chain, result).Inc()
	m.MintDuration.WithLabelValues(chain).Observe(elapsed.Seconds())
}

func (m *BusinessMetrics) ObserveDropped(topic string) {
	if m == nil {
		return
	}
	m.DispatcherDropped.WithLabelValues(topic).Inc()
}

func (m *BusinessMetrics) ObserveReconcile(result string) {
	if m == nil {
		return
	}
	m.ReconcileProcessed.WithLabelValues(result).Inc()
}

func (m *BusinessMetrics) ObserveRelay(topic string) {
	if m == nil {
		return
	}
	m.RelaySentTotal.WithLabelValues(topic).Inc()
}

func (m *BusinessMetrics) ObserveReconcileRun(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ReconcileRunDuration.Observe(elapsed.Seconds())
}
