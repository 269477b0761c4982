// Package entity holds the account-scoped read model consumed from the clearing house.
package entity

import "github.com/shopspring/decimal"

// Direction is derived from the sign of a position's size.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// DirectionOf returns the direction implied by a signed size.
func DirectionOf(size decimal.Decimal) Direction {
	switch size.Sign() {
	case 1:
		return DirectionLong
	case -1:
		return DirectionShort
	default:
		return DirectionFlat
	}
}

// Position is one account's exposure in one market, in display units.
// It is never mutated by this service.
type Position struct {
	Market           string
	MarketID         string
	Size             decimal.Decimal // signed; negative is short
	Margin           decimal.Decimal
	EntryPrice       decimal.Decimal
	LastFundingIndex decimal.Decimal
	RealizedPnL      decimal.Decimal
}

// Direction reports long, short or flat.
func (p Position) Direction() Direction { return DirectionOf(p.Size) }

// IsOpen reports whether the position has non-zero size.
func (p Position) IsOpen() bool { return !p.Size.IsZero() }

// PositionView is a position enriched with the latest mark price.
type PositionView struct {
	Position
	DisplayName   string
	BaseAsset     string
	MarkPrice     decimal.NullDecimal
	Notional      decimal.Decimal
	UnrealizedPnL decimal.Decimal
	PnLPercent    decimal.Decimal
}

// PortfolioSummary aggregates an account's collateral and open positions.
type PortfolioSummary struct {
	Account            string
	AccountValue       decimal.Decimal
	TotalMargin        decimal.Decimal
	TotalRealizedPnL   decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	AvailableMargin    decimal.Decimal
	BuyingPower        decimal.Decimal
	PnLPercent         decimal.Decimal
	OpenPositions      int
}
