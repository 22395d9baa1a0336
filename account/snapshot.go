package account

import (
	"math"
	"strconv"

	"copytrader-go/gateway"
)

// Position 规范化后的单币种持仓。Size 带符号：正=多头，负=空头。
type Position struct {
	Symbol        string
	Size          float64
	EntryPrice    float64
	UnrealizedPnL float64
	Value         float64 // 名义价值（USD）
}

// IsLong 是否多头
func (p Position) IsLong() bool {
	return p.Size > 0
}

// AbsSize 数量绝对值
func (p Position) AbsSize() float64 {
	return math.Abs(p.Size)
}

// Snapshot 一次账户查询得到的全部持仓，按币种索引。
type Snapshot map[string]Position

// FromAccountState 把交易所原始账户状态规范化为快照，数量为零的条目丢弃。
func FromAccountState(state *gateway.AccountState) Snapshot {
	snap := make(Snapshot, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		raw := ap.Position
		size := parseSigned(raw.Szi)
		if size == 0 {
			continue
		}
		snap[raw.Coin] = Position{
			Symbol:        raw.Coin,
			Size:          size,
			EntryPrice:    parseSigned(raw.EntryPx),
			UnrealizedPnL: parseSigned(raw.UnrealizedPnl),
			Value:         math.Abs(parseSigned(raw.PositionValue)),
		}
	}
	return snap
}

// Get 返回币种持仓，第二返回值表示是否存在。
func (s Snapshot) Get(symbol string) (Position, bool) {
	p, ok := s[symbol]
	return p, ok
}

// TotalValue 全部持仓名义价值之和
func (s Snapshot) TotalValue() float64 {
	var total float64
	for _, p := range s {
		total += p.Value
	}
	return total
}

// 上游数值字段统一为字符串，解析失败按 0 处理
func parseSigned(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
