package alert

import (
	"fmt"
	"time"
)

// EventType 跟单事件类型
type EventType string

const (
	EventStartup        EventType = "startup"
	EventTargetTrade    EventType = "target_trade"
	EventOrderExecuted  EventType = "order_executed"
	EventOrderFailed    EventType = "order_failed"
	EventPositionClosed EventType = "position_closed"
	EventShutdown       EventType = "shutdown"
)

// Event 结构化跟单事件，发送给所有通知通道
type Event struct {
	Type      EventType              // 事件类型
	Level     string                 // "INFO", "WARNING", "ERROR", "CRITICAL"
	Message   string                 // 摘要消息
	Timestamp time.Time              // 事件时间
	Fields    map[string]interface{} // 附加字段
}

// Startup 启动事件
func Startup(target string, ratio float64) Event {
	return Event{
		Type:    EventStartup,
		Level:   "INFO",
		Message: fmt.Sprintf("copy trading started, target=%s ratio=%.4f", target, ratio),
		Fields: map[string]interface{}{
			"target": target,
			"ratio":  ratio,
		},
	}
}

// TargetTrade 目标账户仓位变化事件
func TargetTrade(symbol, action string, delta float64) Event {
	return Event{
		Type:    EventTargetTrade,
		Level:   "INFO",
		Message: fmt.Sprintf("target %s %s %+.6f", action, symbol, delta),
		Fields: map[string]interface{}{
			"symbol": symbol,
			"action": action,
			"delta":  delta,
		},
	}
}

// OrderExecuted 本地订单成交事件
func OrderExecuted(symbol, direction string, size, value, price float64) Event {
	return Event{
		Type:    EventOrderExecuted,
		Level:   "INFO",
		Message: fmt.Sprintf("executed %s %s size=%.6f value=%.2f", direction, symbol, size, value),
		Fields: map[string]interface{}{
			"symbol":    symbol,
			"direction": direction,
			"size":      size,
			"value":     value,
			"price":     price,
		},
	}
}

// OrderFailed 本地订单失败事件
func OrderFailed(symbol, direction string, reason string) Event {
	return Event{
		Type:    EventOrderFailed,
		Level:   "ERROR",
		Message: fmt.Sprintf("order failed %s %s: %s", direction, symbol, reason),
		Fields: map[string]interface{}{
			"symbol":    symbol,
			"direction": direction,
			"error":     reason,
		},
	}
}

// PositionClosed 目标清仓、本地跟随平仓事件
func PositionClosed(symbol string) Event {
	return Event{
		Type:    EventPositionClosed,
		Level:   "INFO",
		Message: fmt.Sprintf("position closed: %s", symbol),
		Fields: map[string]interface{}{
			"symbol": symbol,
		},
	}
}

// Shutdown 停机事件
func Shutdown(reason string) Event {
	return Event{
		Type:    EventShutdown,
		Level:   "CRITICAL",
		Message: fmt.Sprintf("copy trading stopped: %s", reason),
		Fields: map[string]interface{}{
			"reason": reason,
		},
	}
}
