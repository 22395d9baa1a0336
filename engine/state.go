package engine

import (
	"math"
	"sync"

	"copytrader-go/account"
)

// FallbackRatio 目标净值不可用时使用的保守跟单比例
const FallbackRatio = 0.01

// maxKnownFills 成交去重集合的容量上限，超出后整体重置。
// 推送模式下只需挡住最近的重复投递，不需要无限记忆。
const maxKnownFills = 10000

// ComputeRatio 按账户净值计算跟单比例：min(own/target, 1.0) × multiplier。
// manual > 0 时使用固定比例（仍乘 multiplier）；目标净值无效时退回 FallbackRatio。
func ComputeRatio(ownValue, targetValue, multiplier, manual float64) float64 {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	if manual > 0 {
		return math.Min(manual, 1.0) * multiplier
	}
	if targetValue <= 0 || ownValue <= 0 {
		return FallbackRatio
	}
	return math.Min(ownValue/targetValue, 1.0) * multiplier
}

// CopyState 跟单运行时状态：比例、上一份目标快照、成交去重、连续失败计数。
// 调度循环是单线程的，但热更新与推送回调可能并发触碰，全部加锁。
type CopyState struct {
	mu sync.Mutex

	ratio      float64
	prev       account.Snapshot
	hasPrev    bool
	knownFills map[string]struct{}
	failures   int
}

// NewCopyState 创建初始状态
func NewCopyState() *CopyState {
	return &CopyState{
		knownFills: make(map[string]struct{}),
	}
}

// Ratio 当前跟单比例
func (s *CopyState) Ratio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio
}

// SetRatio 更新跟单比例
func (s *CopyState) SetRatio(r float64) {
	s.mu.Lock()
	s.ratio = r
	s.mu.Unlock()
}

// Prev 上一份目标快照。第二返回值为 false 表示尚未建立基线（首个周期）。
func (s *CopyState) Prev() (account.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prev, s.hasPrev
}

// SetPrev 记录新的目标快照基线
func (s *CopyState) SetPrev(snap account.Snapshot) {
	s.mu.Lock()
	s.prev = snap
	s.hasPrev = true
	s.mu.Unlock()
}

// SeenFill 去重检查：首次出现返回 false 并记录，重复出现返回 true。
func (s *CopyState) SeenFill(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.knownFills[id]; ok {
		return true
	}
	if len(s.knownFills) >= maxKnownFills {
		s.knownFills = make(map[string]struct{})
	}
	s.knownFills[id] = struct{}{}
	return false
}

// RecordFailure 连续失败计数加一，返回当前计数。
func (s *CopyState) RecordFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	return s.failures
}

// ResetFailures 成功周期后清零
func (s *CopyState) ResetFailures() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}

// Failures 当前连续失败计数
func (s *CopyState) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}
