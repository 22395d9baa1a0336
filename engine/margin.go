package engine

import (
	"context"
	"math"

	"go.uber.org/zap"

	"copytrader-go/config"
	"copytrader-go/infrastructure/logger"
)

// marginBuffer 逐仓保证金在最低需求之上的富余比例
const marginBuffer = 1.10

// MarginExchange 保证金管理所需的交易所能力
type MarginExchange interface {
	SetLeverage(ctx context.Context, coin string, leverage int, isolated bool) error
	SetIsolatedMargin(ctx context.Context, coin string, amountUSD float64) error
}

// MarginManager 开仓前的杠杆与逐仓保证金准备。尽力而为：
// 任何失败只记日志，不阻断后续下单。
type MarginManager struct {
	exchange MarginExchange
	cfg      config.MarginConfig
	log      *logger.Logger
}

// NewMarginManager 创建保证金管理器
func NewMarginManager(exchange MarginExchange, cfg config.MarginConfig, log *logger.Logger) *MarginManager {
	return &MarginManager{exchange: exchange, cfg: cfg, log: log}
}

// Prepare 在开仓/加仓前设置杠杆，逐仓模式下按名义预留保证金。
func (m *MarginManager) Prepare(ctx context.Context, symbol string, notional float64) {
	if err := m.exchange.SetLeverage(ctx, symbol, m.cfg.MaxLeverage, m.cfg.Isolated); err != nil {
		m.log.Warn("设置杠杆失败，继续下单",
			zap.String("symbol", symbol),
			zap.Int("leverage", m.cfg.MaxLeverage),
			zap.Error(err))
	}
	if !m.cfg.Isolated {
		return
	}
	amount := RequiredMargin(notional, m.cfg.MaxLeverage)
	if amount <= 0 {
		return
	}
	if err := m.exchange.SetIsolatedMargin(ctx, symbol, amount); err != nil {
		m.log.Warn("追加逐仓保证金失败，继续下单",
			zap.String("symbol", symbol),
			zap.Float64("amountUSD", amount),
			zap.Error(err))
	}
}

// RequiredMargin 逐仓保证金需求：名义/杠杆 × 1.10，向上取整到分。
func RequiredMargin(notional float64, maxLeverage int) float64 {
	if notional <= 0 || maxLeverage <= 0 {
		return 0
	}
	raw := notional / float64(maxLeverage) * marginBuffer
	return math.Ceil(raw*100) / 100
}
