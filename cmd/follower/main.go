package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"copytrader-go/config"
	"copytrader-go/engine"
	"copytrader-go/gateway"
	"copytrader-go/infrastructure/alert"
	"copytrader-go/infrastructure/logger"
	"copytrader-go/monitor"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	dryRun := flag.Bool("dryRun", false, "仅日志输出，不真正下单")
	metricsAddr := flag.String("metricsAddr", ":9100", "Prometheus metrics 监听地址，留空则关闭")
	watchConfig := flag.Bool("watchConfig", true, "监听配置文件并热更新可调参数")
	flag.Parse()

	// .env 可选，仅用于本地开发注入密钥
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *dryRun {
		cfg.Copy.DryRun = true
	}

	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	metrics := monitor.New()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, metrics, zlog)
	}

	alerts := buildAlerts(cfg)

	client := &gateway.Client{
		BaseURL:    cfg.Exchange.BaseURL,
		APIKey:     cfg.Exchange.APIKey,
		HTTPClient: gateway.NewDefaultHTTPClient(),
		Limiter:    rate.NewLimiter(rate.Limit(cfg.Exchange.RestRate), cfg.Exchange.RestBurst),
	}

	follower := engine.NewFollower(cfg, client, alerts, metrics, zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := follower.Init(ctx, cfg.Copy.CopyExisting); err != nil {
		zlog.Error("启动对账失败", zap.Error(err))
		os.Exit(1)
	}

	if *watchConfig {
		watcher := &config.Watcher{Path: *cfgPath}
		go func() {
			err := watcher.Start(ctx,
				func(next config.AppConfig) { follower.ApplyTunables(next) },
				func(werr error) { zlog.Warn("配置重载失败", zap.Error(werr)) })
			if err != nil && ctx.Err() == nil {
				zlog.Warn("配置监听退出", zap.Error(err))
			}
		}()
	}

	source := buildSource(cfg, zlog)

	// systemd 就绪通知；非 systemd 环境下调用无害
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	zlog.Info("跟单启动",
		zap.String("mode", cfg.Copy.Mode),
		zap.String("target", cfg.Copy.TargetAddress),
		zap.Bool("dryRun", cfg.Copy.DryRun))

	runErr := source.Run(ctx, follower)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	switch {
	case runErr == nil || ctx.Err() != nil:
		follower.NotifyShutdown("signal received")
		zlog.Info("跟单正常退出")
	default:
		// 失败预算耗尽时 Follower 已发过停机通知
		zlog.Error("跟单异常退出", zap.Error(runErr))
		os.Exit(1)
	}
}

func buildAlerts(cfg config.AppConfig) *alert.Manager {
	channels := []alert.Channel{
		alert.NewLogChannel("log", os.Stdout),
	}
	if cfg.Notify.Console {
		channels = append(channels, alert.NewConsoleChannel("console"))
	}
	if cfg.Notify.Telegram.BotToken != "" {
		channels = append(channels,
			alert.NewTelegramChannel("telegram", cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}
	return alert.NewManager(channels, time.Minute)
}

func buildSource(cfg config.AppConfig, zlog *logger.Logger) engine.Source {
	if cfg.Copy.Mode == "push" {
		return &engine.FillSource{
			Stream: &gateway.FillStream{
				Endpoint: cfg.Exchange.WSURL,
				User:     cfg.Copy.TargetAddress,
			},
			ReconnectBackoff: time.Duration(cfg.Copy.ErrorBackoffSec) * time.Second,
			Log:              zlog,
		}
	}
	return &engine.PollSource{
		Interval: time.Duration(cfg.Copy.PollIntervalSec) * time.Second,
		Backoff:  time.Duration(cfg.Copy.ErrorBackoffSec) * time.Second,
		Log:      zlog,
	}
}

func serveMetrics(addr string, metrics *monitor.Metrics, zlog *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		zlog.Warn("metrics 服务退出", zap.Error(err))
	}
}
