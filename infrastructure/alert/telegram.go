package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramChannel 通过 Telegram Bot API 推送事件。
// HTTPClient 可注入 httptest，默认带 5 秒超时。
type TelegramChannel struct {
	BotToken   string
	ChatID     string
	BaseURL    string // 默认 https://api.telegram.org
	HTTPClient *http.Client

	name string
}

// NewTelegramChannel 创建 Telegram 通知通道
func NewTelegramChannel(name, botToken, chatID string) *TelegramChannel {
	return &TelegramChannel{
		BotToken:   botToken,
		ChatID:     chatID,
		BaseURL:    "https://api.telegram.org",
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		name:       name,
	}
}

// Send 格式化并推送事件消息
func (c *TelegramChannel) Send(ev Event) error {
	if c.BotToken == "" || c.ChatID == "" {
		return fmt.Errorf("telegram channel not configured")
	}
	payload := map[string]string{
		"chat_id":    c.ChatID,
		"text":       FormatMessage(ev),
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.BotToken)
	resp, err := c.HTTPClient.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send status %d", resp.StatusCode)
	}
	return nil
}

// Name 返回通道名称
func (c *TelegramChannel) Name() string {
	return c.name
}

// FormatMessage 按事件类型生成 HTML 消息正文
func FormatMessage(ev Event) string {
	switch ev.Type {
	case EventStartup:
		return fmt.Sprintf(
			"🚀 <b>Copy Trading Bot Started</b>\n\nTarget: <code>%v</code>\nCopy %%: %.2f%%\n\nBot is now monitoring and will copy all new trades.",
			ev.Fields["target"], asFloat(ev.Fields["ratio"])*100)
	case EventTargetTrade:
		delta := asFloat(ev.Fields["delta"])
		emoji := "📈"
		if delta < 0 {
			emoji = "📉"
		}
		return fmt.Sprintf(
			"%s <b>Target Trade Detected</b>\n\nCoin: <b>%v</b>\nAction: %v\nChange: %+.6f\n\nBot will copy this trade...",
			emoji, ev.Fields["symbol"], ev.Fields["action"], delta)
	case EventOrderExecuted:
		return fmt.Sprintf(
			"✅ <b>Trade Executed Successfully</b>\n\nCoin: <b>%v</b>\nDirection: %v\nSize: %.6f\nValue: $%.2f",
			ev.Fields["symbol"], ev.Fields["direction"], asFloat(ev.Fields["size"]), asFloat(ev.Fields["value"]))
	case EventOrderFailed:
		return fmt.Sprintf(
			"❌ <b>Trade Failed</b>\n\nCoin: %v\nDirection: %v\nError: <code>%v</code>",
			ev.Fields["symbol"], ev.Fields["direction"], ev.Fields["error"])
	case EventPositionClosed:
		return fmt.Sprintf(
			"🔔 <b>Position Closed</b>\n\nCoin: <b>%v</b>\nTarget closed position.\nYour position will be closed too.",
			ev.Fields["symbol"])
	case EventShutdown:
		return fmt.Sprintf(
			"🛑 <b>Copy Trading Bot Stopped</b>\n\nReason: <code>%v</code>\nTime: %s",
			ev.Fields["reason"], ev.Timestamp.Format("2006-01-02 15:04:05"))
	default:
		return ev.Message
	}
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
