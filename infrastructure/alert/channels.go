package alert

import (
	"fmt"
	"log"
	"os"
)

// LogChannel 日志通知通道
type LogChannel struct {
	logger *log.Logger
	name   string
}

// NewLogChannel 创建日志通知通道
func NewLogChannel(name string, output *os.File) *LogChannel {
	if output == nil {
		output = os.Stdout
	}

	return &LogChannel{
		logger: log.New(output, "[EVENT] ", log.LstdFlags),
		name:   name,
	}
}

// Send 发送事件到日志
func (c *LogChannel) Send(ev Event) error {
	// 格式化事件信息
	msg := fmt.Sprintf("[%s] %s", ev.Level, ev.Message)

	// 添加附加字段
	if len(ev.Fields) > 0 {
		msg += " | Fields: "
		for k, v := range ev.Fields {
			msg += fmt.Sprintf("%s=%v ", k, v)
		}
	}

	// 记录日志
	c.logger.Println(msg)
	return nil
}

// Name 返回通道名称
func (c *LogChannel) Name() string {
	return c.name
}

// ConsoleChannel 控制台通知通道（彩色输出）
type ConsoleChannel struct {
	name string
}

// NewConsoleChannel 创建控制台通知通道
func NewConsoleChannel(name string) *ConsoleChannel {
	return &ConsoleChannel{
		name: name,
	}
}

// Send 发送事件到控制台（带颜色）
func (c *ConsoleChannel) Send(ev Event) error {
	// ANSI颜色代码
	colorReset := "\033[0m"
	colorCode := ""

	switch ev.Level {
	case "INFO":
		colorCode = "\033[32m" // 绿色
	case "WARNING":
		colorCode = "\033[33m" // 黄色
	case "ERROR":
		colorCode = "\033[31m" // 红色
	case "CRITICAL":
		colorCode = "\033[35m" // 紫色
	default:
		colorCode = colorReset
	}

	// 格式化消息
	msg := fmt.Sprintf("%s[%s]%s %s - %s",
		colorCode,
		ev.Level,
		colorReset,
		ev.Timestamp.Format("2006-01-02 15:04:05"),
		ev.Message,
	)

	// 添加字段
	if len(ev.Fields) > 0 {
		msg += " | "
		for k, v := range ev.Fields {
			msg += fmt.Sprintf("%s=%v ", k, v)
		}
	}

	fmt.Println(msg)
	return nil
}

// Name 返回通道名称
func (c *ConsoleChannel) Name() string {
	return c.name
}

// MockChannel 模拟通知通道（用于测试）
type MockChannel struct {
	name      string
	events    []Event
	shouldErr bool
}

// NewMockChannel 创建模拟通知通道
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{
		name:   name,
		events: make([]Event, 0),
	}
}

// Send 记录事件（用于测试验证）
func (c *MockChannel) Send(ev Event) error {
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.events = append(c.events, ev)
	return nil
}

// Name 返回通道名称
func (c *MockChannel) Name() string {
	return c.name
}

// GetEvents 获取所有接收到的事件
func (c *MockChannel) GetEvents() []Event {
	return c.events
}

// CountByType 返回指定类型事件的数量
func (c *MockChannel) CountByType(t EventType) int {
	n := 0
	for _, ev := range c.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.shouldErr = shouldErr
}

// Clear 清空事件记录
func (c *MockChannel) Clear() {
	c.events = make([]Event, 0)
}

// Count 返回接收到的事件数量
func (c *MockChannel) Count() int {
	return len(c.events)
}
