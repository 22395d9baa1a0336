package account

import (
	"testing"
)

func TestDiffFirstCycleMarksFirstSeen(t *testing.T) {
	curr := Snapshot{
		"BTC": {Symbol: "BTC", Size: 1.5},
		"ETH": {Symbol: "ETH", Size: -2},
	}
	changes := Diff(nil, curr)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	for _, ch := range changes {
		if ch.Kind != ChangeFirstSeen {
			t.Fatalf("%s: expected first_seen, got %s", ch.Symbol, ch.Kind)
		}
	}
	// 输出按币种排序
	if changes[0].Symbol != "BTC" || changes[1].Symbol != "ETH" {
		t.Fatalf("changes not sorted: %v, %v", changes[0].Symbol, changes[1].Symbol)
	}
}

func TestDiffClassification(t *testing.T) {
	prev := Snapshot{
		"BTC": {Symbol: "BTC", Size: 1.0},
		"ETH": {Symbol: "ETH", Size: -2.0},
		"SOL": {Symbol: "SOL", Size: 5.0},
	}
	curr := Snapshot{
		"BTC":  {Symbol: "BTC", Size: 1.5},  // 加仓
		"ETH":  {Symbol: "ETH", Size: -1.0}, // 空头减仓
		"DOGE": {Symbol: "DOGE", Size: 100}, // 新开仓
		// SOL 消失 → 清仓
	}
	changes := Diff(prev, curr)
	byKind := map[string]ChangeKind{}
	byDelta := map[string]float64{}
	for _, ch := range changes {
		byKind[ch.Symbol] = ch.Kind
		byDelta[ch.Symbol] = ch.Delta
	}
	if byKind["BTC"] != ChangeIncreased {
		t.Fatalf("BTC: expected increased, got %s", byKind["BTC"])
	}
	if byKind["ETH"] != ChangeReduced {
		t.Fatalf("ETH: expected reduced, got %s", byKind["ETH"])
	}
	if byKind["DOGE"] != ChangeOpened {
		t.Fatalf("DOGE: expected opened, got %s", byKind["DOGE"])
	}
	if byKind["SOL"] != ChangeClosed {
		t.Fatalf("SOL: expected closed, got %s", byKind["SOL"])
	}
	if byDelta["ETH"] != 1.0 {
		t.Fatalf("ETH delta: expected +1.0 (short shrinking), got %f", byDelta["ETH"])
	}
	if byDelta["SOL"] != -5.0 {
		t.Fatalf("SOL delta: expected -5.0, got %f", byDelta["SOL"])
	}
}

func TestDiffDeadbandSuppressesNoise(t *testing.T) {
	prev := Snapshot{"BTC": {Symbol: "BTC", Size: 1.0}}
	curr := Snapshot{"BTC": {Symbol: "BTC", Size: 1.005}}
	if changes := Diff(prev, curr); len(changes) != 0 {
		t.Fatalf("change below deadband must be ignored, got %v", changes)
	}

	// 恰好等于死区边界的变化要被处理
	curr = Snapshot{"BTC": {Symbol: "BTC", Size: 1.01}}
	changes := Diff(prev, curr)
	if len(changes) != 1 || changes[0].Kind != ChangeIncreased {
		t.Fatalf("change at exactly the deadband must register, got %v", changes)
	}

	curr = Snapshot{"BTC": {Symbol: "BTC", Size: 1.02}}
	changes = Diff(prev, curr)
	if len(changes) != 1 || changes[0].Kind != ChangeIncreased {
		t.Fatalf("change above deadband must register, got %v", changes)
	}
}

func TestDiffNoChanges(t *testing.T) {
	prev := Snapshot{"BTC": {Symbol: "BTC", Size: 1.0}}
	curr := Snapshot{"BTC": {Symbol: "BTC", Size: 1.0}}
	if changes := Diff(prev, curr); len(changes) != 0 {
		t.Fatalf("identical snapshots must produce no changes, got %v", changes)
	}
}

func TestDiffEmptyPrevNotNil(t *testing.T) {
	// 空快照（非 nil）意味着基线已建立：新币种是开仓而不是 first_seen
	curr := Snapshot{"BTC": {Symbol: "BTC", Size: 1.0}}
	changes := Diff(Snapshot{}, curr)
	if len(changes) != 1 || changes[0].Kind != ChangeOpened {
		t.Fatalf("expected opened, got %v", changes)
	}
}
