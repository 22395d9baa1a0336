package account

import (
	"math"
	"sort"
)

// SizeDeadband 持仓数量变化的死区，低于该值视为噪声不处理。
const SizeDeadband = 0.01

// ChangeKind 目标持仓变化类型
type ChangeKind int

const (
	// ChangeFirstSeen 首个周期观察到的已有持仓，只记录不跟单
	ChangeFirstSeen ChangeKind = iota
	// ChangeOpened 新开仓
	ChangeOpened
	// ChangeIncreased 加仓
	ChangeIncreased
	// ChangeReduced 减仓
	ChangeReduced
	// ChangeClosed 清仓
	ChangeClosed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeFirstSeen:
		return "first_seen"
	case ChangeOpened:
		return "opened"
	case ChangeIncreased:
		return "increased"
	case ChangeReduced:
		return "reduced"
	case ChangeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Change 一个币种在两次快照之间的持仓变化
type Change struct {
	Symbol string
	Kind   ChangeKind
	Prev   Position // 旧持仓，Opened/FirstSeen 时为零值
	Curr   Position // 新持仓，Closed 时为零值
	Delta  float64  // 带符号数量变化 curr.Size - prev.Size
}

// Diff 比较两次快照，返回按币种排序的变化列表。
// prev 为 nil 表示首个周期：全部现有持仓标记为 FirstSeen。
// 数量变化绝对值低于 SizeDeadband 的币种视为未变化，不产生条目。
func Diff(prev, curr Snapshot) []Change {
	var changes []Change

	if prev == nil {
		for symbol, pos := range curr {
			changes = append(changes, Change{
				Symbol: symbol,
				Kind:   ChangeFirstSeen,
				Curr:   pos,
				Delta:  pos.Size,
			})
		}
		sortChanges(changes)
		return changes
	}

	for symbol, currPos := range curr {
		prevPos, existed := prev[symbol]
		if !existed {
			changes = append(changes, Change{
				Symbol: symbol,
				Kind:   ChangeOpened,
				Curr:   currPos,
				Delta:  currPos.Size,
			})
			continue
		}
		delta := currPos.Size - prevPos.Size
		if math.Abs(delta) < SizeDeadband {
			continue
		}
		kind := ChangeIncreased
		if math.Abs(currPos.Size) < math.Abs(prevPos.Size) {
			kind = ChangeReduced
		}
		changes = append(changes, Change{
			Symbol: symbol,
			Kind:   kind,
			Prev:   prevPos,
			Curr:   currPos,
			Delta:  delta,
		})
	}

	for symbol, prevPos := range prev {
		if _, still := curr[symbol]; still {
			continue
		}
		changes = append(changes, Change{
			Symbol: symbol,
			Kind:   ChangeClosed,
			Prev:   prevPos,
			Delta:  -prevPos.Size,
		})
	}

	sortChanges(changes)
	return changes
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Symbol < changes[j].Symbol
	})
}
