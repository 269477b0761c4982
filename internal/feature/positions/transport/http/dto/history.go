package dto

import (
	"time"

	"futures_dashboard/internal/feature/positions/domain/entity"
)

// OrderResponse は注文履歴の1行です。price は指値がある場合のみ設定されます。
type OrderResponse struct {
	RequestID string    `json:"requestId"`
	Action    string    `json:"action"`
	Market    string    `json:"market"`
	OrderType string    `json:"orderType,omitempty"`
	Side      string    `json:"side,omitempty"`
	Price     *string   `json:"price"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	TxHash    string    `json:"txHash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrdersResponse は GET /portfolio/orders のレスポンスです。
type OrdersResponse struct {
	Account string          `json:"account"`
	Orders  []OrderResponse `json:"orders"`
}

// NewOrdersResponse は注文履歴をレスポンスに変換します。
func NewOrdersResponse(account string, orders []entity.Order) OrdersResponse {
	out := OrdersResponse{Account: account, Orders: make([]OrderResponse, 0, len(orders))}
	for _, o := range orders {
		r := OrderResponse{
			RequestID: o.RequestID,
			Action:    string(o.Action),
			Market:    o.Market,
			OrderType: string(o.Type),
			Side:      string(o.Side),
			Amount:    o.Amount.String(),
			Status:    string(o.Status),
			TxHash:    o.TxHash,
			CreatedAt: o.CreatedAt,
		}
		if o.Price.Valid {
			p := o.Price.Decimal.String()
			r.Price = &p
		}
		out.Orders = append(out.Orders, r)
	}
	return out
}

// TradeResponse は約定履歴の1行です。
type TradeResponse struct {
	RequestID string    `json:"requestId"`
	Market    string    `json:"market"`
	Side      string    `json:"side"`
	Price     *string   `json:"price"`
	Amount    string    `json:"amount"`
	TxHash    string    `json:"txHash"`
	CreatedAt time.Time `json:"createdAt"`
}

// TradesResponse は GET /portfolio/trades のレスポンスです。
type TradesResponse struct {
	Account string          `json:"account"`
	Trades  []TradeResponse `json:"trades"`
}

// NewTradesResponse は約定履歴をレスポンスに変換します。
func NewTradesResponse(account string, trades []entity.Trade) TradesResponse {
	out := TradesResponse{Account: account, Trades: make([]TradeResponse, 0, len(trades))}
	for _, t := range trades {
		r := TradeResponse{
			RequestID: t.RequestID,
			Market:    t.Market,
			Side:      string(t.Side),
			Amount:    t.Amount.String(),
			TxHash:    t.TxHash,
			CreatedAt: t.CreatedAt,
		}
		if t.Price.Valid {
			p := t.Price.Decimal.String()
			r.Price = &p
		}
		out.Trades = append(out.Trades, r)
	}
	return out
}

// HistoryQuery は履歴一覧のクエリパラメータです。
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}
