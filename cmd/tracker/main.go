package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"copytrader-go/account"
	"copytrader-go/config"
	"copytrader-go/gateway"
)

// tracker 只读查看目标账户：净值、持仓、最近成交。不下任何订单。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	address := flag.String("address", "", "要查看的账户地址，默认取 copy.targetAddress")
	fills := flag.Int("fills", 10, "显示最近成交条数，0 表示不显示")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	addr := *address
	if addr == "" {
		addr = cfg.Copy.TargetAddress
	}

	client := &gateway.Client{
		BaseURL:    cfg.Exchange.BaseURL,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    rate.NewLimiter(rate.Limit(cfg.Exchange.RestRate), cfg.Exchange.RestBurst),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	state, err := client.GetAccountState(ctx, addr)
	if err != nil {
		log.Fatalf("查询账户失败: %v", err)
	}

	fmt.Printf("账户 %s\n", addr)
	fmt.Printf("  净值:       $%.2f\n", state.AccountValue())
	fmt.Printf("  占用保证金: $%.2f\n", parse(state.MarginSummary.TotalMarginUsed))
	fmt.Printf("  可提余额:   $%.2f\n", parse(state.Withdrawable))

	snap := account.FromAccountState(state)
	if len(snap) == 0 {
		fmt.Println("  无持仓")
	} else {
		fmt.Printf("  持仓 %d 个:\n", len(snap))
		for _, pos := range snap {
			side := "空"
			if pos.IsLong() {
				side = "多"
			}
			fmt.Printf("    %-8s %s %.6f @ %.4f  名义 $%.2f  未实现 %+.2f\n",
				pos.Symbol, side, pos.AbsSize(), pos.EntryPrice, pos.Value, pos.UnrealizedPnL)
		}
	}

	if *fills > 0 {
		recent, err := client.GetUserFills(ctx, addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "查询成交失败: %v\n", err)
			return
		}
		if len(recent) > *fills {
			recent = recent[:*fills]
		}
		fmt.Printf("  最近成交 %d 笔:\n", len(recent))
		for _, f := range recent {
			side := "卖"
			if f.IsBuy() {
				side = "买"
			}
			ts := time.UnixMilli(f.Time).Format("2006-01-02 15:04:05")
			fmt.Printf("    %s  %-8s %s %.6f @ %.4f\n", ts, f.Coin, side, f.Size(), f.Price())
		}
	}
}

func parse(s string) float64 {
	var v float64
	fmt.Sscanf(s, "%f", &v)
	return v
}
