package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction shown in the order and trade history.
type Side string

const (
	SideBuy   Side = "Buy"
	SideSell  Side = "Sell"
	SideClose Side = "Close"
)

// OrderType tells market orders from orders carrying a price limit.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// OrderStatus follows a submission from the gateway to its receipt.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderFilled   OrderStatus = "filled"
	OrderReverted OrderStatus = "reverted"
	OrderFailed   OrderStatus = "failed" // the gateway refused or never answered
)

// OrderStatusOf maps a receipt status to the order status it settles.
func OrderStatusOf(s TxStatus) OrderStatus {
	switch s {
	case TxSuccess:
		return OrderFilled
	case TxReverted:
		return OrderReverted
	default:
		return OrderPending
	}
}

// Order is one submitted write. Market holds the market symbol for position
// actions and the token symbol for collateral actions, which carry no Side.
type Order struct {
	RequestID string
	Account   string
	Action    Action
	Market    string
	Type      OrderType
	Side      Side
	Price     decimal.NullDecimal // price limit
	Amount    decimal.Decimal
	Status    OrderStatus
	TxHash    string
	CreatedAt time.Time
}

// Trade is a confirmed open or close. Price is the board mark at confirmation
// and is null when the board had no quote for the market.
type Trade struct {
	RequestID string
	Account   string
	Market    string
	Side      Side
	Price     decimal.NullDecimal
	Amount    decimal.Decimal
	TxHash    string
	CreatedAt time.Time
}
