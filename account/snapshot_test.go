package account

import (
	"testing"

	"copytrader-go/gateway"
)

func TestFromAccountState(t *testing.T) {
	state := &gateway.AccountState{
		MarginSummary: gateway.MarginSummary{AccountValue: "12500.50"},
		AssetPositions: []gateway.AssetPosition{
			{Position: gateway.RawPosition{
				Coin: "BTC", Szi: "0.5", EntryPx: "30000",
				UnrealizedPnl: "120.5", PositionValue: "15500",
			}},
			{Position: gateway.RawPosition{
				Coin: "ETH", Szi: "-2", EntryPx: "2000",
				UnrealizedPnl: "-30", PositionValue: "3900",
			}},
			{Position: gateway.RawPosition{Coin: "SOL", Szi: "0"}}, // 零仓位丢弃
		},
	}
	snap := FromAccountState(state)
	if len(snap) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(snap))
	}
	btc, ok := snap.Get("BTC")
	if !ok || !btc.IsLong() || btc.Size != 0.5 {
		t.Fatalf("bad BTC position: %+v", btc)
	}
	eth, ok := snap.Get("ETH")
	if !ok || eth.IsLong() || eth.AbsSize() != 2 {
		t.Fatalf("bad ETH position: %+v", eth)
	}
	if eth.UnrealizedPnL != -30 {
		t.Fatalf("expected pnl -30, got %f", eth.UnrealizedPnL)
	}
	if total := snap.TotalValue(); total != 19400 {
		t.Fatalf("expected total value 19400, got %f", total)
	}
}

func TestFromAccountStateBadNumbers(t *testing.T) {
	state := &gateway.AccountState{
		AssetPositions: []gateway.AssetPosition{
			{Position: gateway.RawPosition{Coin: "BTC", Szi: "not-a-number"}},
		},
	}
	// 解析失败按 0 处理 → 零仓位被丢弃
	if snap := FromAccountState(state); len(snap) != 0 {
		t.Fatalf("unparseable size must be dropped, got %v", snap)
	}
}
