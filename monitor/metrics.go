package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 跟单运行指标，注册在独立 registry 上，测试之间互不污染。
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     prometheus.Counter
	CycleErrors     prometheus.Counter
	OrdersCopied    *prometheus.CounterVec
	OrdersFailed    *prometheus.CounterVec
	OrdersSkipped   *prometheus.CounterVec
	PositionsClosed prometheus.Counter
	FillsSeen       prometheus.Counter
	FillsDuplicate  prometheus.Counter

	CopyRatio    prometheus.Gauge
	AccountValue prometheus.Gauge
	TargetValue  prometheus.Gauge
}

// New 创建并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copytrader_cycles_total",
			Help: "已完成的跟单调度周期数",
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copytrader_cycle_errors_total",
			Help: "失败的跟单周期数",
		}),
		OrdersCopied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copytrader_orders_copied_total",
			Help: "成功复制的订单数",
		}, []string{"symbol", "side"}),
		OrdersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copytrader_orders_failed_total",
			Help: "复制失败的订单数",
		}, []string{"symbol"}),
		OrdersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copytrader_orders_skipped_total",
			Help: "被约束跳过的订单数",
		}, []string{"reason"}),
		PositionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copytrader_positions_closed_total",
			Help: "跟随目标清仓的次数",
		}),
		FillsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copytrader_fills_seen_total",
			Help: "推送模式收到的目标成交数",
		}),
		FillsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "copytrader_fills_duplicate_total",
			Help: "去重丢弃的重复成交数",
		}),
		CopyRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "copytrader_copy_ratio",
			Help: "当前跟单比例",
		}),
		AccountValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "copytrader_account_value_usd",
			Help: "本地账户净值",
		}),
		TargetValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "copytrader_target_value_usd",
			Help: "目标账户净值",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal, m.CycleErrors,
		m.OrdersCopied, m.OrdersFailed, m.OrdersSkipped,
		m.PositionsClosed, m.FillsSeen, m.FillsDuplicate,
		m.CopyRatio, m.AccountValue, m.TargetValue,
	)
	return m
}

// Handler 返回该 registry 的 /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
