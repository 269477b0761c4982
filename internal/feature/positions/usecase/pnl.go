package usecase

import (
	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/positions/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// UnrealizedPnL values a position at markPrice.
// An unavailable or non-positive mark yields zero, as does a flat position.
func UnrealizedPnL(entryPrice, size decimal.Decimal, dir entity.Direction, markPrice decimal.NullDecimal) decimal.Decimal {
	if !markPrice.Valid || markPrice.Decimal.Sign() <= 0 {
		return decimal.Zero
	}
	qty := size.Abs()
	switch dir {
	case entity.DirectionLong:
		return markPrice.Decimal.Sub(entryPrice).Mul(qty)
	case entity.DirectionShort:
		return entryPrice.Sub(markPrice.Decimal).Mul(qty)
	default:
		return decimal.Zero
	}
}

// Notional is entryPrice * |size|.
func Notional(entryPrice, size decimal.Decimal) decimal.Decimal {
	return entryPrice.Mul(size.Abs())
}

// PnLPercent is pnl as a percentage of notional, or zero when notional is zero.
func PnLPercent(pnl, notional decimal.Decimal) decimal.Decimal {
	if notional.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(notional).Mul(hundred)
}

// Value builds the view of p at markPrice.
func Value(p entity.Position, markPrice decimal.NullDecimal) entity.PositionView {
	notional := Notional(p.EntryPrice, p.Size)
	pnl := UnrealizedPnL(p.EntryPrice, p.Size, p.Direction(), markPrice)
	return entity.PositionView{
		Position:      p,
		MarkPrice:     markPrice,
		Notional:      notional,
		UnrealizedPnL: pnl,
		PnLPercent:    PnLPercent(pnl, notional),
	}
}
