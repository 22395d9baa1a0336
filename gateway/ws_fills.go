package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// FillStream 订阅目标账户的实时成交推送。
// 断线后由调用方负责重连（Run 返回错误即为一次连接生命周期结束）。
type FillStream struct {
	Endpoint string // ws 地址，如 wss://api.example.com/ws
	User     string // 被订阅的账户地址
	Dialer   *websocket.Dialer

	// PingInterval 心跳间隔，零值使用 30s
	PingInterval time.Duration
}

type wsSubscribeMessage struct {
	Method       string         `json:"method"`
	Subscription wsSubscription `json:"subscription"`
}

type wsSubscription struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type wsFillEnvelope struct {
	Channel string `json:"channel"`
	Data    struct {
		User       string `json:"user"`
		IsSnapshot bool   `json:"isSnapshot"`
		Fills      []Fill `json:"fills"`
	} `json:"data"`
}

// ParseFillMessage 解析一条 ws 消息，返回属于 user 的成交列表。
// 非 userFills 频道、快照消息或其他账户的数据返回 ok=false。
func ParseFillMessage(raw []byte, user string) ([]Fill, bool) {
	var env wsFillEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Channel != "userFills" {
		return nil, false
	}
	if env.Data.IsSnapshot {
		// 首条快照包含历史成交，不能当作新交易复制
		return nil, false
	}
	if !strings.EqualFold(env.Data.User, user) {
		return nil, false
	}
	return env.Data.Fills, true
}

// Run 建立连接、发送订阅并持续投递成交，直到出错或 ctx 取消。
func (s *FillStream) Run(ctx context.Context, onFill func(Fill)) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, s.Endpoint, nil)
	if err != nil {
		return Transient("ws_dial", err)
	}
	defer conn.Close()

	sub := wsSubscribeMessage{
		Method:       "subscribe",
		Subscription: wsSubscription{Type: "userFills", User: s.User},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return Transient("ws_subscribe", err)
	}

	interval := s.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	// ctx 取消时主动关闭连接，解除 ReadMessage 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return Transient("ws_read", fmt.Errorf("connection lost: %w", err))
		}
		fills, ok := ParseFillMessage(raw, s.User)
		if !ok {
			continue
		}
		for _, f := range fills {
			onFill(f)
		}
	}
}
