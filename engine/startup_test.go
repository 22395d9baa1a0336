package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"copytrader-go/account"
	"copytrader-go/config"
)

func testStartupConfig() config.StartupConfig {
	return config.StartupConfig{
		PriceTolerancePct: 0.005,
		PnLTolerancePct:   0.0075,
	}
}

func TestEvaluateAdoptsMatchingPosition(t *testing.T) {
	r := NewReconciler(testStartupConfig())
	target := account.Snapshot{
		"BTC": {Symbol: "BTC", Size: 1.0, EntryPrice: 30000},
	}
	// 开仓价贴近现价 → 判定为近期跟单产物
	own := account.Snapshot{
		"BTC": {Symbol: "BTC", Size: 0.1, EntryPrice: 30050, Value: 3005, UnrealizedPnL: 5},
	}
	mids := map[string]float64{"BTC": 30000}

	report := r.Evaluate(target, own, mids, 0.1)
	assert.Equal(t, []string{"BTC"}, report.Adopted)
	assert.Empty(t, report.Recorded)
	assert.Empty(t, report.Stale)
	assert.Empty(t, report.Deviations)
}

func TestEvaluateFreshTargetPositionByPrice(t *testing.T) {
	r := NewReconciler(testStartupConfig())
	// 现价贴近目标开仓价 → 近期建立，应当从零复制
	target := account.Snapshot{
		"ETH": {Symbol: "ETH", Size: 5, EntryPrice: 2000, Value: 10000, UnrealizedPnL: 500},
	}
	report := r.Evaluate(target, account.Snapshot{}, map[string]float64{"ETH": 2000}, 0.1)
	assert.Empty(t, report.Adopted)
	assert.Equal(t, []string{"ETH"}, report.Fresh)
	assert.Empty(t, report.Recorded)
}

func TestEvaluateRecordsOldTargetPosition(t *testing.T) {
	r := NewReconciler(testStartupConfig())
	// 价格偏离且浮盈可观的老仓位：只记入基线，不补单
	target := account.Snapshot{
		"ETH": {Symbol: "ETH", Size: 5, EntryPrice: 1500, Value: 10000, UnrealizedPnL: 2500},
	}
	report := r.Evaluate(target, account.Snapshot{}, map[string]float64{"ETH": 2000}, 0.1)
	assert.Empty(t, report.Adopted)
	assert.Empty(t, report.Fresh)
	assert.Equal(t, []string{"ETH"}, report.Recorded)
}

func TestEvaluateOppositeDirectionNotAdopted(t *testing.T) {
	r := NewReconciler(testStartupConfig())
	target := account.Snapshot{
		"ETH": {Symbol: "ETH", Size: 5},
	}
	own := account.Snapshot{
		"ETH": {Symbol: "ETH", Size: -0.5, Value: 1000},
	}
	report := r.Evaluate(target, own, nil, 0.1)
	assert.Empty(t, report.Adopted)
	assert.Equal(t, []string{"ETH"}, report.Recorded)
	// 本地反向仓位对目标而言不存在对应 → 不算 stale（币种在目标中存在）
	assert.Empty(t, report.Stale)
}

func TestEvaluateFlagsStaleOwnPosition(t *testing.T) {
	r := NewReconciler(testStartupConfig())
	own := account.Snapshot{
		"DOGE": {Symbol: "DOGE", Size: 100, Value: 20},
	}
	report := r.Evaluate(account.Snapshot{}, own, nil, 0.1)
	assert.Equal(t, []string{"DOGE"}, report.Stale)
}

func TestEvaluateFlagsSizeDrift(t *testing.T) {
	r := NewReconciler(testStartupConfig())
	target := account.Snapshot{
		"BTC": {Symbol: "BTC", Size: 1.0, EntryPrice: 30000},
	}
	// 期望 0.1，但本地 0.2：偏差 100% > 5%
	own := account.Snapshot{
		"BTC": {Symbol: "BTC", Size: 0.2, EntryPrice: 30000, Value: 6000, UnrealizedPnL: 1},
	}
	report := r.Evaluate(target, own, map[string]float64{"BTC": 30000}, 0.1)
	assert.Equal(t, []string{"BTC"}, report.Adopted)
	if assert.Len(t, report.Deviations, 1) {
		assert.Equal(t, "BTC", report.Deviations[0].Symbol)
	}
}

func TestEvaluatePnLToleranceQualifiesAsFresh(t *testing.T) {
	r := NewReconciler(testStartupConfig())
	// 价格偏差超限，但目标未实现盈亏占名义很小 → 仍按近期建立处理
	target := account.Snapshot{
		"SOL": {Symbol: "SOL", Size: 10, EntryPrice: 140, Value: 1500, UnrealizedPnL: 0.5},
	}
	report := r.Evaluate(target, account.Snapshot{}, map[string]float64{"SOL": 150}, 0.1)
	assert.Equal(t, []string{"SOL"}, report.Fresh)
	assert.Empty(t, report.Recorded)
}
