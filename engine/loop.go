package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"copytrader-go/account"
	"copytrader-go/config"
	"copytrader-go/gateway"
	"copytrader-go/infrastructure/alert"
	"copytrader-go/infrastructure/logger"
	"copytrader-go/monitor"
)

// Exchange 跟单循环依赖的交易所能力，*gateway.Client 实现它。
type Exchange interface {
	GetAccountState(ctx context.Context, address string) (*gateway.AccountState, error)
	GetMidPrices(ctx context.Context) (map[string]float64, error)
	PlaceMarketOrder(ctx context.Context, coin string, isBuy bool, size, slippage float64) (*gateway.OrderResult, error)
	ClosePosition(ctx context.Context, coin string, size float64) (*gateway.OrderResult, error)
	SetLeverage(ctx context.Context, coin string, leverage int, isolated bool) error
	SetIsolatedMargin(ctx context.Context, coin string, amountUSD float64) error
}

// Follower 跟单协调器：快照对比、订单执行、失败预算、通知。
// 单信号源顺序驱动，不并发执行订单。
type Follower struct {
	exchange   Exchange
	oracle     *Oracle
	state      *CopyState
	reconciler *Reconciler
	margin     *MarginManager
	alerts     *alert.Manager
	metrics    *monitor.Metrics
	log        *logger.Logger

	ownAddr    string
	targetAddr string

	// 可热更新字段，ApplyTunables 持锁替换
	tunMu       sync.RWMutex
	sizer       *Sizer
	multiplier  float64
	manualRatio float64
	slippage    float64
	dryRun      bool
	budget      int

	shutdownOnce sync.Once
}

// NewFollower 按配置装配跟单协调器
func NewFollower(cfg config.AppConfig, exchange Exchange, alerts *alert.Manager, metrics *monitor.Metrics, log *logger.Logger) *Follower {
	return &Follower{
		exchange:    exchange,
		oracle:      NewOracle(exchange, time.Duration(cfg.Copy.PollIntervalSec)*time.Second/2),
		state:       NewCopyState(),
		reconciler:  NewReconciler(cfg.Startup),
		margin:      NewMarginManager(exchange, cfg.Margin, log),
		alerts:      alerts,
		metrics:     metrics,
		log:         log,
		ownAddr:     cfg.Exchange.AccountAddress,
		targetAddr:  cfg.Copy.TargetAddress,
		sizer:       NewSizer(cfg.Sizing),
		multiplier:  cfg.Copy.Multiplier,
		manualRatio: cfg.Copy.ManualRatio,
		slippage:    cfg.Copy.SlippagePct,
		dryRun:      cfg.Copy.DryRun,
		budget:      cfg.Copy.FailureBudget,
	}
}

// State 暴露运行时状态（cmd 与测试用）
func (f *Follower) State() *CopyState {
	return f.state
}

// ApplyTunables 热更新可调字段：比例、滑点、数量约束、失败预算。
// 地址与运行模式不支持热切换。
func (f *Follower) ApplyTunables(cfg config.AppConfig) {
	f.tunMu.Lock()
	defer f.tunMu.Unlock()
	f.sizer = NewSizer(cfg.Sizing)
	f.multiplier = cfg.Copy.Multiplier
	f.manualRatio = cfg.Copy.ManualRatio
	f.slippage = cfg.Copy.SlippagePct
	f.dryRun = cfg.Copy.DryRun
	f.budget = cfg.Copy.FailureBudget
	f.log.Info("运行参数已热更新",
		zap.Float64("multiplier", cfg.Copy.Multiplier),
		zap.Float64("slippage", cfg.Copy.SlippagePct),
		zap.Bool("dryRun", cfg.Copy.DryRun))
}

func (f *Follower) tunables() (*Sizer, float64, float64, float64, bool, int) {
	f.tunMu.RLock()
	defer f.tunMu.RUnlock()
	return f.sizer, f.multiplier, f.manualRatio, f.slippage, f.dryRun, f.budget
}

// Init 启动对账：计算跟单比例、收编存量仓位、建立快照基线。
// copyExisting 为真时基线置空，让首个周期把目标存量当作新开仓复制。
func (f *Follower) Init(ctx context.Context, copyExisting bool) error {
	own, err := f.exchange.GetAccountState(ctx, f.ownAddr)
	if err != nil {
		return fmt.Errorf("fetch own account: %w", err)
	}
	target, err := f.exchange.GetAccountState(ctx, f.targetAddr)
	if err != nil {
		return fmt.Errorf("fetch target account: %w", err)
	}
	mids, err := f.oracle.Refresh(ctx)
	if err != nil {
		f.log.Warn("启动时行情不可用，跳过价格相似度判断", zap.Error(err))
		mids = map[string]float64{}
	}

	_, multiplier, manual, _, _, _ := f.tunables()
	ratio := ComputeRatio(own.AccountValue(), target.AccountValue(), multiplier, manual)
	f.state.SetRatio(ratio)
	f.metrics.CopyRatio.Set(ratio)
	f.metrics.AccountValue.Set(own.AccountValue())
	f.metrics.TargetValue.Set(target.AccountValue())

	ownSnap := account.FromAccountState(own)
	targetSnap := account.FromAccountState(target)
	report := f.reconciler.Evaluate(targetSnap, ownSnap, mids, ratio)
	f.log.LogCycle("startup_reconciled", map[string]interface{}{
		"adopted":  report.Adopted,
		"fresh":    report.Fresh,
		"recorded": report.Recorded,
		"stale":    report.Stale,
		"ratio":    ratio,
	})
	for _, d := range report.Deviations {
		f.log.Warn("启动仓位偏差", zap.String("symbol", d.Symbol), zap.String("reason", d.Reason))
	}

	if copyExisting {
		f.state.SetPrev(account.Snapshot{})
	} else {
		// 近期建立的目标仓位不进基线：下一周期按新开仓从零复制
		base := make(account.Snapshot, len(targetSnap))
		for symbol, pos := range targetSnap {
			base[symbol] = pos
		}
		for _, symbol := range report.Fresh {
			delete(base, symbol)
		}
		f.state.SetPrev(base)
	}

	f.alerts.Publish(alert.Startup(f.targetAddr, ratio))
	return nil
}

// HandleCycle 一次完整的轮询周期：拉取目标快照、对比、逐笔执行。
// 单笔订单失败只通知不中断周期；快照拉取失败计入失败预算。
func (f *Follower) HandleCycle(ctx context.Context) error {
	target, err := f.exchange.GetAccountState(ctx, f.targetAddr)
	if err != nil {
		return f.recordFailure(fmt.Errorf("fetch target account: %w", err))
	}
	curr := account.FromAccountState(target)

	prev, hasPrev := f.state.Prev()
	var changes []account.Change
	if hasPrev {
		changes = account.Diff(prev, curr)
	} else {
		changes = account.Diff(nil, curr)
	}

	executed := false
	var orderErr error
	if len(changes) > 0 {
		ownSnap, ratio := f.prepareExecution(ctx, target)
		for _, ch := range changes {
			ok, err := f.executeChange(ctx, ch, ownSnap, ratio)
			if ok {
				executed = true
			}
			if err != nil {
				orderErr = err
			}
		}
	}

	f.state.SetPrev(curr)
	f.metrics.CyclesTotal.Inc()

	if executed {
		f.refreshRatio(ctx)
	}
	// 暂时性下单失败计入失败预算；约束拒绝在 executeChange 中已豁免
	if orderErr != nil {
		return f.recordFailure(orderErr)
	}
	f.state.ResetFailures()
	return nil
}

// prepareExecution 拉取本地快照并刷新比例；失败时退回缓存值，
// 订单封顶逻辑将因缺少本地仓位而偏保守。
func (f *Follower) prepareExecution(ctx context.Context, target *gateway.AccountState) (account.Snapshot, float64) {
	ratio := f.state.Ratio()
	own, err := f.exchange.GetAccountState(ctx, f.ownAddr)
	if err != nil {
		f.log.Warn("拉取本地账户失败，使用缓存比例", zap.Error(err))
		return account.Snapshot{}, ratio
	}
	_, multiplier, manual, _, _, _ := f.tunables()
	ratio = ComputeRatio(own.AccountValue(), target.AccountValue(), multiplier, manual)
	f.state.SetRatio(ratio)
	f.metrics.CopyRatio.Set(ratio)
	f.metrics.AccountValue.Set(own.AccountValue())
	f.metrics.TargetValue.Set(target.AccountValue())
	return account.FromAccountState(own), ratio
}

// executeChange 执行单笔变化。第一返回值表示是否有订单实际发出；
// 第二返回值携带需要计入失败预算的暂时性下单错误（约束拒绝返回 nil）。
func (f *Follower) executeChange(ctx context.Context, ch account.Change, own account.Snapshot, ratio float64) (bool, error) {
	sizer, _, _, slippage, dryRun, _ := f.tunables()

	price, perr := f.oracle.Price(ctx, ch.Symbol)
	if perr != nil {
		f.log.Warn("获取价格失败，跳过最小名义修正", zap.String("symbol", ch.Symbol), zap.Error(perr))
		price = 0
	}

	if ch.Kind != account.ChangeFirstSeen {
		f.alerts.Publish(alert.TargetTrade(ch.Symbol, ch.Kind.String(), ch.Delta))
	}

	plan, skip := sizer.ComputeOrder(ch, own, ratio, price)
	if plan == nil {
		f.log.LogSkip(string(skip), map[string]interface{}{
			"symbol": ch.Symbol,
			"kind":   ch.Kind.String(),
			"delta":  ch.Delta,
		})
		f.metrics.OrdersSkipped.WithLabelValues(string(skip)).Inc()
		return false, nil
	}

	if dryRun {
		f.log.LogTrade("dry_run_order", map[string]interface{}{
			"symbol": plan.Symbol,
			"isBuy":  plan.IsBuy,
			"size":   plan.Size,
			"close":  plan.IsClose,
		})
		return false, nil
	}

	direction := "sell"
	if plan.IsBuy {
		direction = "buy"
	}

	var res *gateway.OrderResult
	var err error
	if plan.IsClose {
		closeSize := plan.Size
		if plan.CloseAll {
			closeSize = 0
		}
		res, err = f.exchange.ClosePosition(ctx, plan.Symbol, closeSize)
	} else {
		f.margin.Prepare(ctx, plan.Symbol, plan.Notional)
		res, err = f.exchange.PlaceMarketOrder(ctx, plan.Symbol, plan.IsBuy, plan.Size, slippage)
	}
	if err != nil {
		f.alerts.Publish(alert.OrderFailed(plan.Symbol, direction, err.Error()))
		f.metrics.OrdersFailed.WithLabelValues(plan.Symbol).Inc()
		f.log.LogError(err, map[string]interface{}{"symbol": plan.Symbol, "direction": direction})
		if gateway.IsConstraint(err) {
			// 约束拒绝不会因重试而消失，不计入失败预算
			return false, nil
		}
		return false, err
	}

	size, avg := plan.Size, plan.Price
	if res.Filled() {
		size, avg = res.FilledSize, res.AvgPrice
	}
	if plan.CloseAll {
		f.alerts.Publish(alert.PositionClosed(plan.Symbol))
		f.metrics.PositionsClosed.Inc()
	} else {
		f.alerts.Publish(alert.OrderExecuted(plan.Symbol, direction, size, size*avg, avg))
	}
	f.metrics.OrdersCopied.WithLabelValues(plan.Symbol, direction).Inc()
	f.log.LogTrade("order_copied", map[string]interface{}{
		"symbol":    plan.Symbol,
		"direction": direction,
		"size":      size,
		"avgPrice":  avg,
		"close":     plan.IsClose,
	})
	return true, nil
}

// HandleFill 推送模式：目标成交去重后直接换算成同向市价单。
func (f *Follower) HandleFill(ctx context.Context, fill gateway.Fill) error {
	f.metrics.FillsSeen.Inc()
	if f.state.SeenFill(fill.ID()) {
		f.metrics.FillsDuplicate.Inc()
		return nil
	}

	sizer, _, _, slippage, dryRun, _ := f.tunables()
	ratio := f.state.Ratio()

	signed := fill.Size()
	if !fill.IsBuy() {
		signed = -signed
	}
	f.alerts.Publish(alert.TargetTrade(fill.Coin, "fill", signed))

	price := fill.Price()
	if price <= 0 {
		price, _ = f.oracle.Price(ctx, fill.Coin)
	}

	plan, skip := sizer.PlanFromFill(fill.Coin, fill.IsBuy(), fill.Size(), ratio, price)
	if plan == nil {
		f.log.LogSkip(string(skip), map[string]interface{}{
			"symbol": fill.Coin,
			"fillId": fill.ID(),
		})
		f.metrics.OrdersSkipped.WithLabelValues(string(skip)).Inc()
		return nil
	}

	if dryRun {
		f.log.LogTrade("dry_run_order", map[string]interface{}{
			"symbol": plan.Symbol,
			"isBuy":  plan.IsBuy,
			"size":   plan.Size,
		})
		return nil
	}

	direction := "sell"
	if plan.IsBuy {
		direction = "buy"
	}

	f.margin.Prepare(ctx, plan.Symbol, plan.Notional)
	res, err := f.exchange.PlaceMarketOrder(ctx, plan.Symbol, plan.IsBuy, plan.Size, slippage)
	if err != nil {
		f.alerts.Publish(alert.OrderFailed(plan.Symbol, direction, err.Error()))
		f.metrics.OrdersFailed.WithLabelValues(plan.Symbol).Inc()
		if gateway.IsConstraint(err) {
			// 约束拒绝不会因重试而消失，不计入失败预算
			return nil
		}
		return f.recordFailure(err)
	}

	size, avg := plan.Size, plan.Price
	if res.Filled() {
		size, avg = res.FilledSize, res.AvgPrice
	}
	f.alerts.Publish(alert.OrderExecuted(plan.Symbol, direction, size, size*avg, avg))
	f.metrics.OrdersCopied.WithLabelValues(plan.Symbol, direction).Inc()
	f.state.ResetFailures()
	f.refreshRatio(ctx)
	return nil
}

// recordFailure 累计连续失败，超过预算时发出一次停机通知并返回 ErrFailureBudget。
func (f *Follower) recordFailure(err error) error {
	f.metrics.CycleErrors.Inc()
	n := f.state.RecordFailure()
	_, _, _, _, _, budget := f.tunables()
	f.log.LogError(err, map[string]interface{}{"consecutiveFailures": n})
	if n >= budget {
		f.fatalShutdown(fmt.Sprintf("%d consecutive failures, last: %v", n, err))
		return ErrFailureBudget
	}
	return err
}

// fatalShutdown 保证停机通知恰好发出一次
func (f *Follower) fatalShutdown(reason string) {
	f.shutdownOnce.Do(func() {
		f.log.Error("失败预算耗尽，进程退出", zap.String("reason", reason))
		f.alerts.Publish(alert.Shutdown(reason))
	})
}

// NotifyShutdown 正常停机通知（信号退出时由 cmd 调用），同样只发一次。
func (f *Follower) NotifyShutdown(reason string) {
	f.shutdownOnce.Do(func() {
		f.alerts.Publish(alert.Shutdown(reason))
	})
}

// refreshRatio 订单成交后按最新净值重算跟单比例，尽力而为。
func (f *Follower) refreshRatio(ctx context.Context) {
	own, err := f.exchange.GetAccountState(ctx, f.ownAddr)
	if err != nil {
		return
	}
	target, err := f.exchange.GetAccountState(ctx, f.targetAddr)
	if err != nil {
		return
	}
	_, multiplier, manual, _, _, _ := f.tunables()
	ratio := ComputeRatio(own.AccountValue(), target.AccountValue(), multiplier, manual)
	f.state.SetRatio(ratio)
	f.metrics.CopyRatio.Set(ratio)
	f.metrics.AccountValue.Set(own.AccountValue())
	f.metrics.TargetValue.Set(target.AccountValue())
}
