package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"copytrader-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env      string         `yaml:"env"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Copy     CopyConfig     `yaml:"copy"`
	Sizing   SizingConfig   `yaml:"sizing"`
	Margin   MarginConfig   `yaml:"margin"`
	Startup  StartupConfig  `yaml:"startup"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  logger.Config  `yaml:"logging"`
}

type ExchangeConfig struct {
	BaseURL        string  `yaml:"baseURL"`
	WSURL          string  `yaml:"wsURL"`
	APIKey         string  `yaml:"apiKey"`
	AccountAddress string  `yaml:"accountAddress"`
	RestRate       float64 `yaml:"restRate"`  // REST 限流：每秒请求数
	RestBurst      int     `yaml:"restBurst"` // REST 限流：突发上限
}

// CopyConfig drives the reconciliation loop. Mode is "poll" or "push".
type CopyConfig struct {
	TargetAddress   string  `yaml:"targetAddress"`
	Mode            string  `yaml:"mode"`
	Multiplier      float64 `yaml:"multiplier"`      // 比例系数，默认 1.0
	ManualRatio     float64 `yaml:"manualRatio"`     // >0 时固定跟单比例，0 表示按净值自动
	CopyExisting    bool    `yaml:"copyExisting"`    // 启动时是否直接复制已有仓位
	PollIntervalSec int     `yaml:"pollIntervalSec"` // 轮询周期（秒）
	ErrorBackoffSec int     `yaml:"errorBackoffSec"` // 单次失败后的退避（秒）
	SlippagePct     float64 `yaml:"slippagePct"`     // 市价单滑点容忍
	FailureBudget   int     `yaml:"failureBudget"`   // 连续失败上限，超过即退出
	DryRun          bool    `yaml:"dryRun"`
}

type SizingConfig struct {
	MinNotionalUSD  float64          `yaml:"minNotionalUSD"`
	DefaultDecimals int32            `yaml:"defaultDecimals"`
	Decimals        map[string]int32 `yaml:"decimals"` // 按币种覆盖的数量精度
}

type MarginConfig struct {
	Isolated    bool `yaml:"isolated"`
	MaxLeverage int  `yaml:"maxLeverage"`
}

type StartupConfig struct {
	PriceTolerancePct float64 `yaml:"priceTolerancePct"` // 现价与开仓价的相对偏差阈值
	PnLTolerancePct   float64 `yaml:"pnlTolerancePct"`   // 未实现盈亏占名义的阈值
}

type NotifyConfig struct {
	Console  bool           `yaml:"console"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatID"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("CT_EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("CT_ACCOUNT_ADDRESS"); v != "" {
		cfg.Exchange.AccountAddress = v
	}
	if v := os.Getenv("CT_TARGET_ADDRESS"); v != "" {
		cfg.Copy.TargetAddress = v
	}
	if v := os.Getenv("CT_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("CT_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.Telegram.ChatID = v
	}
	return cfg, Validate(cfg)
}

// Defaults returns the configuration the loader starts from; YAML overrides it.
func Defaults() AppConfig {
	return AppConfig{
		Env: "prod",
		Exchange: ExchangeConfig{
			RestRate:  5,
			RestBurst: 10,
		},
		Copy: CopyConfig{
			Mode:            "poll",
			Multiplier:      1.0,
			PollIntervalSec: 10,
			ErrorBackoffSec: 10,
			SlippagePct:     0.01,
			FailureBudget:   5,
		},
		Sizing: SizingConfig{
			MinNotionalUSD:  10.5,
			DefaultDecimals: 2,
			Decimals:        map[string]int32{"BTC": 4, "ETH": 4, "SOL": 2},
		},
		Margin: MarginConfig{
			MaxLeverage: 10,
		},
		Startup: StartupConfig{
			PriceTolerancePct: 0.005,
			PnLTolerancePct:   0.0075,
		},
		Notify:  NotifyConfig{Console: true},
		Logging: logger.DefaultConfig(),
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Exchange.BaseURL == "" {
		return errors.New("exchange.baseURL is required")
	}
	if cfg.Exchange.AccountAddress == "" {
		return errors.New("exchange.accountAddress is required (or CT_ACCOUNT_ADDRESS)")
	}
	if cfg.Copy.TargetAddress == "" {
		return errors.New("copy.targetAddress is required (or CT_TARGET_ADDRESS)")
	}
	if strings.EqualFold(cfg.Copy.TargetAddress, cfg.Exchange.AccountAddress) {
		return errors.New("copy.targetAddress must differ from own account")
	}
	switch cfg.Copy.Mode {
	case "poll", "push":
	default:
		return fmt.Errorf("copy.mode must be poll or push, got %q", cfg.Copy.Mode)
	}
	if cfg.Copy.Mode == "push" && cfg.Exchange.WSURL == "" {
		return errors.New("exchange.wsURL is required in push mode")
	}
	if cfg.Copy.Multiplier <= 0 {
		return errors.New("copy.multiplier must be > 0")
	}
	if cfg.Copy.ManualRatio < 0 {
		return errors.New("copy.manualRatio must be >= 0")
	}
	if cfg.Copy.PollIntervalSec <= 0 {
		return errors.New("copy.pollIntervalSec must be > 0")
	}
	if cfg.Copy.SlippagePct < 0 || cfg.Copy.SlippagePct > 0.5 {
		return errors.New("copy.slippagePct must be within [0, 0.5]")
	}
	if cfg.Copy.FailureBudget <= 0 {
		return errors.New("copy.failureBudget must be > 0")
	}
	if cfg.Sizing.MinNotionalUSD < 0 {
		return errors.New("sizing.minNotionalUSD must be >= 0")
	}
	if cfg.Sizing.DefaultDecimals < 0 {
		return errors.New("sizing.defaultDecimals must be >= 0")
	}
	for coin, d := range cfg.Sizing.Decimals {
		if d < 0 {
			return fmt.Errorf("sizing.decimals[%s] must be >= 0", coin)
		}
	}
	if cfg.Margin.Isolated && cfg.Margin.MaxLeverage <= 0 {
		return errors.New("margin.maxLeverage must be > 0 when isolated margin is on")
	}
	if cfg.Startup.PriceTolerancePct < 0 || cfg.Startup.PnLTolerancePct < 0 {
		return errors.New("startup tolerances must be >= 0")
	}
	if (cfg.Notify.Telegram.BotToken == "") != (cfg.Notify.Telegram.ChatID == "") {
		return errors.New("notify.telegram requires both botToken and chatID")
	}
	return nil
}
