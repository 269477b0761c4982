// Package dto はmarketdata HTTP API のデータ転送オブジェクトを定義します。
package dto

import (
	"time"

	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/platform/fixedpoint"
)

const (
	// MessageNotEnoughData は2点未満の系列に表示する文言です。
	MessageNotEnoughData = "Not enough data for this range yet, check back soon."
	// MessageFailed は取得失敗時に表示する文言です。
	MessageFailed = "Failed to load price data."

	displayPlaces int32 = 2
)

// PointResponse はエリアチャートの1点です。
type PointResponse struct {
	Time  string `json:"time"`
	Price string `json:"price"`
	TWAP  string `json:"twap,omitempty"`
}

// CandleResponse はローソク足1本です。
type CandleResponse struct {
	Time  string `json:"time"`  // バケット開始時刻
	Open  string `json:"open"`  // 始値
	High  string `json:"high"`  // 高値
	Low   string `json:"low"`   // 安値
	Close string `json:"close"` // 終値
}

// ChartResponse は1チャートの描画用状態です。
type ChartResponse struct {
	Kind          string   `json:"kind"`
	Market        string   `json:"market,omitempty"`
	Range         string   `json:"range"`
	RangeOptions  []string `json:"rangeOptions"`
	AxisFormat    string   `json:"axisFormat,omitempty"`
	Status        string   `json:"status"`
	Loading       bool     `json:"loading"`
	HasEnoughData bool     `json:"hasEnoughData"`

	CurrentPrice      *string `json:"currentPrice"`
	CurrentPriceLabel string  `json:"currentPriceLabel"`
	PriceAt           string  `json:"priceAt,omitempty"`
	AbsoluteChange    *string `json:"absoluteChange"`
	PercentChange     *string `json:"percentChange"`
	ChangeLabel       string  `json:"changeLabel,omitempty"`
	IsPriceUp         bool    `json:"isPriceUp"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Points  []PointResponse  `json:"points,omitempty"`
	Candles []CandleResponse `json:"candles,omitempty"`
	Seq     uint64           `json:"seq"`
}

func strPtr(s string) *string { return &s }

// NewChartResponse は ViewState をレスポンスに変換します。
func NewChartResponse(st entity.ViewState) ChartResponse {
	opts := st.Selection.Kind.RangeOptions()
	ranges := make([]string, 0, len(opts))
	for _, r := range opts {
		ranges = append(ranges, string(r))
	}

	out := ChartResponse{
		Kind:              string(st.Selection.Kind),
		Market:            st.Selection.Market,
		Range:             string(st.Selection.Range),
		RangeOptions:      ranges,
		AxisFormat:        st.Spec.AxisFormat,
		Status:            string(st.Status),
		Loading:           st.Loading(),
		HasEnoughData:     st.HasEnoughData(),
		CurrentPriceLabel: fixedpoint.FormatPrice(st.CurrentPrice, displayPlaces),
		Error:             st.Err,
		Seq:               st.Seq,
	}
	if st.Selection.Kind == entity.ChartIndex {
		out.Market = ""
	}

	switch st.Status {
	case entity.StatusEmpty:
		out.Message = MessageNotEnoughData
	case entity.StatusFailed:
		out.Message = MessageFailed
	}

	if st.CurrentPrice.Valid {
		out.CurrentPrice = strPtr(st.CurrentPrice.Decimal.String())
		out.PriceAt = st.PriceAt.UTC().Format(time.RFC3339Nano)
	}
	if st.Change != nil {
		out.AbsoluteChange = strPtr(st.Change.Absolute.String())
		out.PercentChange = strPtr(st.Change.Percent.StringFixed(displayPlaces))
		out.ChangeLabel = fixedpoint.FormatSigned(st.Change.Absolute, displayPlaces) +
			" (" + fixedpoint.FormatSigned(st.Change.Percent, displayPlaces) + "%)"
		out.IsPriceUp = !st.Change.Absolute.IsNegative()
	}

	if len(st.Points) > 0 {
		out.Points = make([]PointResponse, 0, len(st.Points))
		for _, p := range st.Points {
			pr := PointResponse{Time: p.Time.UTC().Format(time.RFC3339Nano), Price: p.Price.String()}
			if p.TWAP.Valid {
				pr.TWAP = p.TWAP.Decimal.String()
			}
			out.Points = append(out.Points, pr)
		}
	}
	if len(st.Candles) > 0 {
		out.Candles = make([]CandleResponse, 0, len(st.Candles))
		for _, c := range st.Candles {
			out.Candles = append(out.Candles, CandleResponse{
				Time:  c.BucketStart.UTC().Format(time.RFC3339),
				Open:  c.Open.String(),
				High:  c.High.String(),
				Low:   c.Low.String(),
				Close: c.Close.String(),
			})
		}
	}
	return out
}

// RangeRequest は WebSocket でクライアントが送るレンジ変更です。
type RangeRequest struct {
	Range  string `json:"range"`
	Market string `json:"market,omitempty"`
}

// MarketResponse はマーケット一覧の1件です。
type MarketResponse struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"displayName"`
	BaseAsset   string `json:"baseAsset"`
	QuoteAsset  string `json:"quoteAsset"`
	MarketID    string `json:"marketId"`
	AMMAddress  string `json:"ammAddress"`
	Decimals    int32  `json:"decimals"`
	Deprecated  bool   `json:"deprecated"`
	Default     bool   `json:"default"`
}
