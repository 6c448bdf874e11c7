package stock

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for stock operations.
// A nil *Metrics is valid and records nothing.
// 在庫操作用のPrometheusコレクターを保持。
// nilの場合は何も記録しない。
type Metrics struct {
	MovementsTotal  *prometheus.CounterVec // 移動タイプ別の台帳追記数
	FailuresTotal   *prometheus.CounterVec // 操作別の業務エラー数
	StockTakesTotal *prometheus.CounterVec // 結果別の棚卸セッション数
}

// NewMetrics creates and registers stock metrics on the given registerer
// 指定されたregistererにメトリクスを作成・登録
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MovementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tanaoroshi",
			Name:      "stock_movements_total",
			Help:      "Number of ledger entries appended, by movement type.",
		}, []string{"movement_type"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tanaoroshi",
			Name:      "stock_operation_failures_total",
			Help:      "Number of rejected stock operations, by operation.",
		}, []string{"operation"}),
		StockTakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tanaoroshi",
			Name:      "stock_take_sessions_total",
			Help:      "Number of stock take sessions, by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.MovementsTotal, m.FailuresTotal, m.StockTakesTotal)
	}

	return m
}

// recordMovement counts one appended ledger entry
// 台帳追記を1件カウント
func (m *Metrics) recordMovement(t MovementType) {
	if m == nil {
		return
	}
	m.MovementsTotal.WithLabelValues(string(t)).Inc()
}

// recordFailure counts one rejected operation
// 拒否された操作を1件カウント
func (m *Metrics) recordFailure(operation string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(operation).Inc()
}

// recordStockTake counts one session outcome (started / completed / cancelled)
// 棚卸セッションの結果を1件カウント（started / completed / cancelled）
func (m *Metrics) recordStockTake(outcome string) {
	if m == nil {
		return
	}
	m.StockTakesTotal.WithLabelValues(outcome).Inc()
}
