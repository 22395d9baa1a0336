package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"copytrader-go/gateway"
	"copytrader-go/infrastructure/logger"
)

// ErrFailureBudget 连续失败超过上限，进程应当退出。
var ErrFailureBudget = errors.New("consecutive failure budget exhausted")

// Handler 信号源驱动的跟单处理器
type Handler interface {
	// HandleCycle 执行一次完整的快照对比周期
	HandleCycle(ctx context.Context) error
	// HandleFill 处理一笔目标账户实时成交
	HandleFill(ctx context.Context, fill gateway.Fill) error
}

// Source 跟单信号源：轮询或推送
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// PollSource 定时轮询信号源。失败周期后额外退避 Backoff 再进入下一轮。
type PollSource struct {
	Interval time.Duration
	Backoff  time.Duration
	Log      *logger.Logger
}

// Run 立即执行首个周期，之后按间隔调度，直到 ctx 取消或失败预算耗尽。
func (p *PollSource) Run(ctx context.Context, h Handler) error {
	for {
		err := h.HandleCycle(ctx)
		if errors.Is(err, ErrFailureBudget) {
			return err
		}
		wait := p.Interval
		if err != nil {
			if p.Log != nil {
				p.Log.Warn("跟单周期失败，退避后重试",
					zap.Duration("backoff", p.Backoff), zap.Error(err))
			}
			wait += p.Backoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// FillSource 成交推送信号源。连接断开后按 ReconnectBackoff 重连，
// 直到 ctx 取消或失败预算耗尽。
type FillSource struct {
	Stream           *gateway.FillStream
	ReconnectBackoff time.Duration
	Log              *logger.Logger
}

// Run 维持 ws 订阅并把成交投递给处理器。
func (f *FillSource) Run(ctx context.Context, h Handler) error {
	backoff := f.ReconnectBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	for {
		runCtx, cancel := context.WithCancel(ctx)
		var budget error
		err := f.Stream.Run(runCtx, func(fill gateway.Fill) {
			if herr := h.HandleFill(runCtx, fill); errors.Is(herr, ErrFailureBudget) {
				budget = herr
				cancel()
			}
		})
		cancel()
		if budget != nil {
			return budget
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.Log != nil {
			f.Log.Warn("成交推送连接断开，准备重连",
				zap.Duration("backoff", backoff), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
