package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"copytrader-go/account"
	"copytrader-go/config"
)

// NoiseFloor 缩放后数量低于该值视为噪声，不下单。
const NoiseFloor = 0.0001

// SkipReason 订单被跳过的原因
type SkipReason string

const (
	SkipNegligible       SkipReason = "negligible_size"
	SkipNoOwnPosition    SkipReason = "no_own_position"
	SkipBelowMinNotional SkipReason = "below_min_notional"
	SkipFirstSeen        SkipReason = "first_seen_recorded"
)

// OrderPlan 一笔待执行的本地订单
type OrderPlan struct {
	Symbol   string
	IsBuy    bool
	Size     float64
	IsClose  bool
	CloseAll bool    // 目标清仓时整仓市价平掉
	Price    float64 // 计算名义所用的参考价，0 表示价格未知
	Notional float64 // Size × Price
}

// Sizer 订单数量与约束引擎：比例缩放、精度取整、最小名义修正、平仓封顶。
type Sizer struct {
	cfg config.SizingConfig
}

// NewSizer 创建 Sizer
func NewSizer(cfg config.SizingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// ComputeOrder 把一次目标持仓变化换算成本地订单计划。
// own 为本地当前持仓快照，ratio 为跟单比例，price 为该币种参考中间价（可为 0）。
// 返回计划或跳过原因，二者必有其一。
func (s *Sizer) ComputeOrder(ch account.Change, own account.Snapshot, ratio, price float64) (*OrderPlan, SkipReason) {
	switch ch.Kind {
	case account.ChangeFirstSeen:
		return nil, SkipFirstSeen
	case account.ChangeClosed:
		ownPos, ok := own.Get(ch.Symbol)
		if !ok || ownPos.Size == 0 {
			return nil, SkipNoOwnPosition
		}
		return &OrderPlan{
			Symbol:   ch.Symbol,
			IsBuy:    !ownPos.IsLong(),
			IsClose:  true,
			CloseAll: true,
			Price:    price,
		}, ""
	case account.ChangeReduced:
		ownPos, ok := own.Get(ch.Symbol)
		if !ok || ownPos.Size == 0 {
			return nil, SkipNoOwnPosition
		}
		return s.planClose(ch, ownPos, ratio, price)
	default: // Opened / Increased
		return s.planOpen(ch, ratio, price)
	}
}

// planOpen 开仓/加仓：缩放、取整、最小名义修正。
func (s *Sizer) planOpen(ch account.Change, ratio, price float64) (*OrderPlan, SkipReason) {
	size, skip := s.constrainedSize(ch.Symbol, math.Abs(ch.Delta)*ratio, price, noCap)
	if skip != "" {
		return nil, skip
	}
	return &OrderPlan{
		Symbol:   ch.Symbol,
		IsBuy:    ch.Delta > 0,
		Size:     size,
		Price:    price,
		Notional: size * price,
	}, ""
}

// planClose 减仓：按比例缩放后平掉对应数量，封顶在本地持仓。
// 名义修正同样生效，封顶是唯一可以把订单压到最小名义之下的例外。
func (s *Sizer) planClose(ch account.Change, ownPos account.Position, ratio, price float64) (*OrderPlan, SkipReason) {
	size, skip := s.constrainedSize(ch.Symbol, math.Abs(ch.Delta)*ratio, price, ownPos.AbsSize())
	if skip != "" {
		return nil, skip
	}
	return &OrderPlan{
		Symbol:   ch.Symbol,
		IsBuy:    !ownPos.IsLong(),
		Size:     size,
		IsClose:  true,
		Price:    price,
		Notional: size * price,
	}, ""
}

// PlanFromFill 推送模式：目标成交直接换算成同向本地市价单。
func (s *Sizer) PlanFromFill(symbol string, isBuy bool, fillSize, ratio, price float64) (*OrderPlan, SkipReason) {
	size, skip := s.constrainedSize(symbol, fillSize*ratio, price, noCap)
	if skip != "" {
		return nil, skip
	}
	return &OrderPlan{
		Symbol:   symbol,
		IsBuy:    isBuy,
		Size:     size,
		Price:    price,
		Notional: size * price,
	}, ""
}

// noCap 表示调用方没有持仓上限约束
const noCap = -1.0

// constrainedSize 统一的数量约束流程：噪声过滤、精度取整、最小名义向上修正、
// 调用方持仓封顶。cap >= 0 时结果不超过 cap，且封顶后不再要求最小名义。
func (s *Sizer) constrainedSize(symbol string, scaled, price, cap float64) (float64, SkipReason) {
	if scaled < NoiseFloor {
		return 0, SkipNegligible
	}
	dp := s.decimalsFor(symbol)
	size := roundSize(scaled, dp)
	if size <= 0 {
		return 0, SkipNegligible
	}

	min := s.cfg.MinNotionalUSD
	if price > 0 && min > 0 {
		// 最多三轮：向上取整到满足最小名义为止
		for round := 0; round < 3 && size*price < min; round++ {
			size = roundSizeUp(min/price, dp)
		}
		if cap < 0 && size*price < min {
			return 0, SkipBelowMinNotional
		}
	}

	if cap >= 0 && size > cap {
		size = roundSize(cap, dp)
	}
	if size <= 0 {
		return 0, SkipNegligible
	}
	return size, ""
}

func (s *Sizer) decimalsFor(symbol string) int32 {
	if dp, ok := s.cfg.Decimals[symbol]; ok {
		return dp
	}
	return s.cfg.DefaultDecimals
}

func roundSize(v float64, dp int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(dp).Float64()
	return f
}

func roundSizeUp(v float64, dp int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundUp(dp).Float64()
	return f
}
