package engine

import (
	"context"
	"sync"
	"time"

	"copytrader-go/gateway"
)

// MidPriceSource 中间价来源
type MidPriceSource interface {
	GetMidPrices(ctx context.Context) (map[string]float64, error)
}

// Oracle 带 TTL 缓存的价格适配器。一个调度周期内多个币种共享同一次行情查询。
type Oracle struct {
	source MidPriceSource
	ttl    time.Duration

	mu        sync.Mutex
	cache     map[string]float64
	fetchedAt time.Time
	now       func() time.Time
}

// NewOracle 创建价格适配器，ttl<=0 时默认 5 秒。
func NewOracle(source MidPriceSource, ttl time.Duration) *Oracle {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Oracle{
		source: source,
		ttl:    ttl,
		cache:  make(map[string]float64),
		now:    time.Now,
	}
}

// Price 返回币种中间价。缓存过期时重新拉取；未知币种返回 0 与 nil 错误，
// 由调用方决定是否跳过名义修正。
func (o *Oracle) Price(ctx context.Context, coin string) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.now().Sub(o.fetchedAt) > o.ttl || len(o.cache) == 0 {
		mids, err := o.source.GetMidPrices(ctx)
		if err != nil {
			// 缓存尚存时降级使用旧价
			if len(o.cache) > 0 {
				return o.cache[coin], nil
			}
			return 0, gateway.Transient("oracle_price", err)
		}
		o.cache = mids
		o.fetchedAt = o.now()
	}
	return o.cache[coin], nil
}

// Refresh 强制刷新缓存并返回全量中间价
func (o *Oracle) Refresh(ctx context.Context) (map[string]float64, error) {
	mids, err := o.source.GetMidPrices(ctx)
	if err != nil {
		return nil, gateway.Transient("oracle_refresh", err)
	}
	o.mu.Lock()
	o.cache = mids
	o.fetchedAt = o.now()
	o.mu.Unlock()
	return mids, nil
}
