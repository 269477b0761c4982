// Package dto はpositions HTTP API のデータ転送オブジェクトを定義します。
package dto

import (
	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/platform/fixedpoint"
)

// 表示用の小数点以下桁数
const (
	pricePlaces   int32 = 2
	percentPlaces int32 = 2
	sizePlaces    int32 = 4
)

// PositionResponse は1ポジションの表示用データです。
// 数値はすべて10進文字列で、*Label は表示用に整形した文字列です。
type PositionResponse struct {
	Market        string  `json:"market"`
	MarketID      string  `json:"marketId"`
	DisplayName   string  `json:"displayName"`
	BaseAsset     string  `json:"baseAsset"`
	Direction     string  `json:"direction"`
	IsLong        bool    `json:"isLong"`
	IsShort       bool    `json:"isShort"`
	Size          string  `json:"size"`
	SizeLabel     string  `json:"sizeLabel"`
	Margin        string  `json:"margin"`
	EntryPrice    string  `json:"entryPrice"`
	RealizedPnL   string  `json:"realizedPnL"`
	MarkPrice     *string `json:"markPrice"`
	MarkLabel     string  `json:"markPriceLabel"`
	Notional      string  `json:"notional"`
	UnrealizedPnL string  `json:"unrealizedPnL"`
	PnLPercent    string  `json:"pnlPercent"`
	PnLLabel      string  `json:"pnlLabel"`
}

// NewPositionResponse はドメインのビューをレスポンスに変換します。
func NewPositionResponse(v entity.PositionView) PositionResponse {
	dir := v.Direction()
	r := PositionResponse{
		Market:        v.Market,
		MarketID:      v.MarketID,
		DisplayName:   v.DisplayName,
		BaseAsset:     v.BaseAsset,
		Direction:     string(dir),
		IsLong:        dir == entity.DirectionLong,
		IsShort:       dir == entity.DirectionShort,
		Size:          v.Size.String(),
		SizeLabel:     sizeLabel(v.Size),
		Margin:        v.Margin.String(),
		EntryPrice:    v.EntryPrice.String(),
		RealizedPnL:   v.RealizedPnL.String(),
		MarkLabel:     fixedpoint.FormatPrice(v.MarkPrice, pricePlaces),
		Notional:      v.Notional.String(),
		UnrealizedPnL: v.UnrealizedPnL.String(),
		PnLPercent:    v.PnLPercent.StringFixed(percentPlaces),
		PnLLabel:      pnlLabel(v.UnrealizedPnL, v.PnLPercent),
	}
	if v.MarkPrice.Valid {
		s := v.MarkPrice.Decimal.String()
		r.MarkPrice = &s
	}
	return r
}

// PositionsResponse は GET /positions のレスポンスです。
type PositionsResponse struct {
	Account   string             `json:"account"`
	Positions []PositionResponse `json:"positions"`
}

// PortfolioResponse は GET /portfolio のレスポンスです。
type PortfolioResponse struct {
	Account            string `json:"account"`
	AccountValue       string `json:"accountValue"`
	AccountValueLabel  string `json:"accountValueLabel"`
	TotalMargin        string `json:"totalMargin"`
	TotalRealizedPnL   string `json:"totalRealizedPnL"`
	TotalUnrealizedPnL string `json:"totalUnrealizedPnL"`
	AvailableMargin    string `json:"availableMargin"`
	BuyingPower        string `json:"buyingPower"`
	PnLPercent         string `json:"pnlPercent"`
	OpenPositions      int    `json:"openPositions"`
}

// NewPortfolioResponse はサマリーをレスポンスに変換します。
func NewPortfolioResponse(s entity.PortfolioSummary) PortfolioResponse {
	return PortfolioResponse{
		Account:            s.Account,
		AccountValue:       s.AccountValue.String(),
		AccountValueLabel:  fixedpoint.FormatPrice(decimal.NewNullDecimal(s.AccountValue), pricePlaces),
		TotalMargin:        s.TotalMargin.String(),
		TotalRealizedPnL:   s.TotalRealizedPnL.String(),
		TotalUnrealizedPnL: s.TotalUnrealizedPnL.String(),
		AvailableMargin:    s.AvailableMargin.String(),
		BuyingPower:        s.BuyingPower.String(),
		PnLPercent:         s.PnLPercent.StringFixed(percentPlaces),
		OpenPositions:      s.OpenPositions,
	}
}

// RiskResponse は GET /markets/:market/risk のレスポンスです。
type RiskResponse struct {
	Market                    string `json:"market"`
	IMRBps                    int64  `json:"imrBps"`
	MMRBps                    int64  `json:"mmrBps"`
	LiquidationPenaltyBps     int64  `json:"liquidationPenaltyBps"`
	PenaltyCap                string `json:"penaltyCap"`
	IMRPercent                string `json:"imrPercent"`
	MMRPercent                string `json:"mmrPercent"`
	LiquidationPenaltyPercent string `json:"liquidationPenaltyPercent"`
	MaxLeverage               string `json:"maxLeverage,omitempty"`

	// セッションがある場合のみ設定されます。
	Liquidation *LiquidationResponse `json:"liquidation,omitempty"`
}

// LiquidationResponse は口座の清算状態です。
type LiquidationResponse struct {
	IsLiquidatable    bool   `json:"isLiquidatable"`
	MaintenanceMargin string `json:"maintenanceMargin"`
}

// NewRiskResponse はリスクパラメータをレスポンスに変換します。
// 最大レバレッジは 100 / IMR% で、IMR が 0 の場合は省略します。
func NewRiskResponse(rp entity.RiskParams) RiskResponse {
	r := RiskResponse{
		Market:                    rp.Market,
		IMRBps:                    rp.IMRBps,
		MMRBps:                    rp.MMRBps,
		LiquidationPenaltyBps:     rp.LiquidationPenaltyBps,
		PenaltyCap:                rp.PenaltyCap.String(),
		IMRPercent:                rp.IMRPercent().String(),
		MMRPercent:                rp.MMRPercent().String(),
		LiquidationPenaltyPercent: rp.LiquidationPenaltyPercent().String(),
	}
	if imr := rp.IMRPercent(); imr.Sign() > 0 {
		r.MaxLeverage = decimal.NewFromInt(100).Div(imr).StringFixed(1)
	}
	return r
}

// OpenPositionRequest は POST /trade/open のリクエストです。
type OpenPositionRequest struct {
	Market     string `json:"market" binding:"required"`
	Side       string `json:"side" binding:"required,oneof=long short"`
	Size       string `json:"size" binding:"required"`
	PriceLimit string `json:"priceLimit"`
}

// ClosePositionRequest は POST /trade/close のリクエストです。
type ClosePositionRequest struct {
	Market     string `json:"market" binding:"required"`
	Size       string `json:"size" binding:"required"`
	PriceLimit string `json:"priceLimit"`
}

// CollateralRequest は POST /collateral/deposit と /collateral/withdraw のリクエストです。
type CollateralRequest struct {
	Token  string `json:"token" binding:"required,eth_addr"`
	Amount string `json:"amount" binding:"required"`
}

// ApproveRequest は POST /collateral/approve のリクエストです。
type ApproveRequest struct {
	Token   string `json:"token" binding:"required,eth_addr"`
	Spender string `json:"spender" binding:"omitempty,eth_addr"`
	Amount  string `json:"amount" binding:"required"`
}

// MintRequest は POST /collateral/mint のリクエストです。
type MintRequest struct {
	Token  string `json:"token" binding:"required,eth_addr"`
	Amount string `json:"amount"`
}

// TxResponse は送信したトランザクションの結果です。
type TxResponse struct {
	RequestID string `json:"requestId"`
	Action    string `json:"action"`
	Hash      string `json:"hash,omitempty"`
	Status    string `json:"status"`
}

// NewTxResponse は送信結果をレスポンスに変換します。
func NewTxResponse(r entity.TxResult) TxResponse {
	return TxResponse{
		RequestID: r.RequestID,
		Action:    string(r.Action),
		Hash:      r.Hash,
		Status:    string(r.Status),
	}
}

func pnlLabel(pnl, pct decimal.Decimal) string {
	return fixedpoint.FormatSigned(pnl, pricePlaces) + " (" + fixedpoint.FormatSigned(pct, percentPlaces) + "%)"
}

func sizeLabel(size decimal.Decimal) string {
	return fixedpoint.FormatDisplay(size.Abs(), sizePlaces)
}
