package engine

import (
	"fmt"
	"math"
	"sort"

	"copytrader-go/account"
	"copytrader-go/config"
)

// deviationThreshold 已收编仓位与期望缩放数量的相对偏差告警阈值
const deviationThreshold = 0.05

// Deviation 启动诊断发现的仓位偏差
type Deviation struct {
	Symbol string
	Reason string
}

// StartupReport 启动对账结果。
// Adopted：本地已有同向对应仓位，直接纳入镜像。
// Fresh：目标仓位判定为近期建立（现价贴近目标开仓价，或目标未实现盈亏
// 占名义很小），本地没有对应仓位，按从零到当前复制。
// Recorded：目标存量老仓位，只记入基线不补单。
// Stale：本地有但目标没有的仓位，留给人工处理。
type StartupReport struct {
	Adopted    []string
	Fresh      []string
	Recorded   []string
	Stale      []string
	Deviations []Deviation
}

// Reconciler 启动对账器：判断本地存量仓位与目标仓位的对应关系。
type Reconciler struct {
	cfg config.StartupConfig
}

// NewReconciler 创建启动对账器
func NewReconciler(cfg config.StartupConfig) *Reconciler {
	return &Reconciler{cfg: cfg}
}

// Evaluate 比较目标与本地快照。mids 为当前中间价（可缺币种），ratio 为跟单比例。
func (r *Reconciler) Evaluate(target, own account.Snapshot, mids map[string]float64, ratio float64) StartupReport {
	var report StartupReport

	for symbol, tpos := range target {
		opos, ok := own.Get(symbol)
		if !ok || (opos.IsLong() != tpos.IsLong()) {
			if r.looksFresh(tpos, mids[symbol]) {
				report.Fresh = append(report.Fresh, symbol)
			} else {
				report.Recorded = append(report.Recorded, symbol)
			}
			continue
		}

		report.Adopted = append(report.Adopted, symbol)

		expected := tpos.AbsSize() * ratio
		if expected > 0 {
			drift := math.Abs(opos.AbsSize()-expected) / expected
			if drift > deviationThreshold {
				report.Deviations = append(report.Deviations, Deviation{
					Symbol: symbol,
					Reason: fmt.Sprintf("size drift %.1f%% from expected %.6f", drift*100, expected),
				})
			}
		}
	}

	for symbol := range own {
		if _, ok := target.Get(symbol); !ok {
			report.Stale = append(report.Stale, symbol)
		}
	}

	sort.Strings(report.Adopted)
	sort.Strings(report.Fresh)
	sort.Strings(report.Recorded)
	sort.Strings(report.Stale)
	sort.Slice(report.Deviations, func(i, j int) bool {
		return report.Deviations[i].Symbol < report.Deviations[j].Symbol
	})
	return report
}

// looksFresh 相似度启发：目标开仓价贴近现价，或目标未实现盈亏占名义很小，
// 两者满足其一即认为仓位是近期建立的，值得从零复制。
func (r *Reconciler) looksFresh(pos account.Position, mid float64) bool {
	if mid > 0 && pos.EntryPrice > 0 {
		if math.Abs(mid-pos.EntryPrice)/mid <= r.cfg.PriceTolerancePct {
			return true
		}
	}
	if pos.Value > 0 {
		if math.Abs(pos.UnrealizedPnL)/pos.Value <= r.cfg.PnLTolerancePct {
			return true
		}
	}
	return false
}
