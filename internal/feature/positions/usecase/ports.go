package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/platform/registry"
)

// ChainReader reads clearing house state. Values are already in display units.
type ChainReader interface {
	Position(ctx context.Context, account, marketID string) (entity.Position, error)
	AccountValue(ctx context.Context, account string) (decimal.Decimal, error)
	RiskParams(ctx context.Context, marketID string) (entity.RiskParams, error)
	Liquidation(ctx context.Context, account, marketID string) (entity.LiquidationStatus, error)
	MarkPrice(ctx context.Context, ammAddress string) (decimal.Decimal, error)
}

// TxSubmitter relays contract writes and reports their receipts.
type TxSubmitter interface {
	Submit(ctx context.Context, call entity.ContractCall) (string, error)
	Receipt(ctx context.Context, hash string) (entity.TxStatus, error)
}

// Catalog resolves markets, collateral tokens and protocol addresses.
type Catalog interface {
	Market(symbol string) (registry.Market, error)
	Markets() []registry.Market
	Token(address string) (registry.Token, error)
	Contracts() registry.Contracts
}

// TradeLog records submitted orders and confirmed trades.
type TradeLog interface {
	AppendOrder(ctx context.Context, o entity.Order) error
	SetOrderStatus(ctx context.Context, requestID string, status entity.OrderStatus) error
	AppendTrade(ctx context.Context, t entity.Trade) error
}

// HistoryReader lists an account's orders and trades, newest first.
type HistoryReader interface {
	Orders(ctx context.Context, account string, limit int) ([]entity.Order, error)
	Trades(ctx context.Context, account string, limit int) ([]entity.Trade, error)
}
