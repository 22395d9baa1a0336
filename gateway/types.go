package gateway

import (
	"fmt"
	"strconv"
)

// AccountState 账户状态（clearinghouseState 返回）。数值字段按上游约定为字符串。
type AccountState struct {
	MarginSummary  MarginSummary   `json:"marginSummary"`
	AssetPositions []AssetPosition `json:"assetPositions"`
	Withdrawable   string          `json:"withdrawable"`
}

// MarginSummary 保证金概要
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// AssetPosition 单个持仓的外层包装
type AssetPosition struct {
	Position RawPosition `json:"position"`
}

// RawPosition 交易所原始持仓。Szi 为带符号数量，正=多头，负=空头。
type RawPosition struct {
	Coin          string       `json:"coin"`
	Szi           string       `json:"szi"`
	EntryPx       string       `json:"entryPx"`
	UnrealizedPnl string       `json:"unrealizedPnl"`
	PositionValue string       `json:"positionValue"`
	MarginUsed    string       `json:"marginUsed"`
	Leverage      LeverageInfo `json:"leverage"`
}

// LeverageInfo 杠杆信息
type LeverageInfo struct {
	Type  string `json:"type"` // cross / isolated
	Value int    `json:"value"`
}

// AccountValue 解析账户净值，解析失败返回 0。
func (s *AccountState) AccountValue() float64 {
	return parseFloat(s.MarginSummary.AccountValue)
}

// OrderResult 市价单执行结果。IOC 语义下未成交不是错误。
type OrderResult struct {
	Status     string  // "filled", "resting", "expired"
	FilledSize float64 // 实际成交数量
	AvgPrice   float64 // 成交均价
}

// Filled 判断是否有实际成交
func (r *OrderResult) Filled() bool {
	return r != nil && r.FilledSize > 0
}

// Fill 目标账户单笔成交（userFills 推送）。
type Fill struct {
	Coin string `json:"coin"`
	Side string `json:"side"` // "A" 买 / "B" 卖，沿用上游原始约定
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Hash string `json:"hash"`
	Time int64  `json:"time"`
}

// ID 去重用复合 id：交易哈希 + 时间戳
func (f Fill) ID() string {
	return fmt.Sprintf("%s_%d", f.Hash, f.Time)
}

// IsBuy 判断成交方向
func (f Fill) IsBuy() bool {
	return f.Side == "A"
}

// Size 解析成交数量
func (f Fill) Size() float64 {
	return parseFloat(f.Sz)
}

// Price 解析成交价格
func (f Fill) Price() float64 {
	return parseFloat(f.Px)
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
