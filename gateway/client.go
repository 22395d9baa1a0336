package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Client 永续合约 API 客户端。默认不发起真实网络调用，HTTPClient 可注入 httptest。
// info 端点无鉴权，exchange 端点携带 API key 头。
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *rate.Limiter // 可选 REST 限流
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

type exchangeRequest struct {
	Action orderAction `json:"action"`
}

type orderAction struct {
	Type      string  `json:"type"`
	Coin      string  `json:"coin,omitempty"`
	IsBuy     *bool   `json:"isBuy,omitempty"`
	Sz        string  `json:"sz,omitempty"`
	Slippage  float64 `json:"slippage,omitempty"`
	Leverage  int     `json:"leverage,omitempty"`
	IsCross   *bool   `json:"isCross,omitempty"`
	AmountUSD string  `json:"amountUsd,omitempty"`
}

type exchangeResponse struct {
	Status   string `json:"status"` // "ok" 或错误描述载体
	Response struct {
		Data struct {
			Statuses []orderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type orderStatus struct {
	Filled *struct {
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled,omitempty"`
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Error string `json:"error,omitempty"`
}

// GetAccountState 获取账户净值与持仓快照。
func (c *Client) GetAccountState(ctx context.Context, address string) (*AccountState, error) {
	var state AccountState
	req := infoRequest{Type: "clearinghouseState", User: address}
	if err := c.post(ctx, "/info", "get_account_state", req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetMidPrices 获取全市场中间价。
func (c *Client) GetMidPrices(ctx context.Context) (map[string]float64, error) {
	raw := make(map[string]string)
	req := infoRequest{Type: "allMids"}
	if err := c.post(ctx, "/info", "get_mid_prices", req, &raw); err != nil {
		return nil, err
	}
	mids := make(map[string]float64, len(raw))
	for coin, px := range raw {
		v, err := strconv.ParseFloat(px, 64)
		if err != nil || v <= 0 {
			continue
		}
		mids[coin] = v
	}
	return mids, nil
}

// GetUserFills 获取账户最近成交记录。
func (c *Client) GetUserFills(ctx context.Context, address string) ([]Fill, error) {
	var fills []Fill
	req := infoRequest{Type: "userFills", User: address}
	if err := c.post(ctx, "/info", "get_user_fills", req, &fills); err != nil {
		return nil, err
	}
	return fills, nil
}

// PlaceMarketOrder 市价开仓/加仓（IOC 语义，滑点保护）。
func (c *Client) PlaceMarketOrder(ctx context.Context, coin string, isBuy bool, size, slippage float64) (*OrderResult, error) {
	if size <= 0 {
		return nil, Constraintf("place_market_order", "size must be > 0, got %f", size)
	}
	action := orderAction{
		Type:     "marketOrder",
		Coin:     coin,
		IsBuy:    &isBuy,
		Sz:       formatSize(size),
		Slippage: slippage,
	}
	return c.execute(ctx, "place_market_order", action)
}

// ClosePosition 市价平仓。size<=0 时全平，否则按数量部分平仓。
func (c *Client) ClosePosition(ctx context.Context, coin string, size float64) (*OrderResult, error) {
	action := orderAction{
		Type: "marketClose",
		Coin: coin,
	}
	if size > 0 {
		action.Sz = formatSize(size)
	}
	return c.execute(ctx, "close_position", action)
}

// SetLeverage 设置杠杆倍数与保证金模式。
func (c *Client) SetLeverage(ctx context.Context, coin string, leverage int, isolated bool) error {
	isCross := !isolated
	action := orderAction{
		Type:     "updateLeverage",
		Coin:     coin,
		Leverage: leverage,
		IsCross:  &isCross,
	}
	var resp exchangeResponse
	if err := c.post(ctx, "/exchange", "set_leverage", exchangeRequest{Action: action}, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return Transient("set_leverage", fmt.Errorf("status %q", resp.Status))
	}
	return nil
}

// SetIsolatedMargin 为逐仓仓位追加保证金（USD 计）。
func (c *Client) SetIsolatedMargin(ctx context.Context, coin string, amountUSD float64) error {
	if amountUSD <= 0 {
		return Constraintf("set_isolated_margin", "amount must be > 0, got %f", amountUSD)
	}
	action := orderAction{
		Type:      "updateIsolatedMargin",
		Coin:      coin,
		AmountUSD: strconv.FormatFloat(amountUSD, 'f', 2, 64),
	}
	var resp exchangeResponse
	if err := c.post(ctx, "/exchange", "set_isolated_margin", exchangeRequest{Action: action}, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return Transient("set_isolated_margin", fmt.Errorf("status %q", resp.Status))
	}
	return nil
}

// execute 发送下单类 action 并解析成交结果。
func (c *Client) execute(ctx context.Context, op string, action orderAction) (*OrderResult, error) {
	var resp exchangeResponse
	if err := c.post(ctx, "/exchange", op, exchangeRequest{Action: action}, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, Transient(op, fmt.Errorf("status %q", resp.Status))
	}
	statuses := resp.Response.Data.Statuses
	if len(statuses) == 0 {
		// IOC 到期无成交：非错误，上层不发成功通知
		return &OrderResult{Status: "expired"}, nil
	}
	st := statuses[0]
	switch {
	case st.Error != "":
		return nil, Constraintf(op, "%s", st.Error)
	case st.Filled != nil:
		return &OrderResult{
			Status:     "filled",
			FilledSize: parseFloat(st.Filled.TotalSz),
			AvgPrice:   parseFloat(st.Filled.AvgPx),
		}, nil
	case st.Resting != nil:
		return &OrderResult{Status: "resting"}, nil
	default:
		return &OrderResult{Status: "expired"}, nil
	}
}

func (c *Client) post(ctx context.Context, path, op string, payload, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return Fatal(op, fmt.Errorf("http client not set"))
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return Transient(op, err)
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Fatal(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return Fatal(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-KEY", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Transient(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Transient(op, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Transient(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func formatSize(size float64) string {
	return strconv.FormatFloat(size, 'f', -1, 64)
}
