package entity

import "github.com/shopspring/decimal"

var bpsPerPercent = decimal.NewFromInt(100)

// RiskParams are a market's margin requirements in basis points.
type RiskParams struct {
	Market                string
	IMRBps                int64
	MMRBps                int64
	LiquidationPenaltyBps int64
	PenaltyCap            decimal.Decimal
}

// IMRPercent is the initial margin ratio as a percentage (1000 bps = 10%).
func (r RiskParams) IMRPercent() decimal.Decimal { return bpsToPercent(r.IMRBps) }

// MMRPercent is the maintenance margin ratio as a percentage.
func (r RiskParams) MMRPercent() decimal.Decimal { return bpsToPercent(r.MMRBps) }

// LiquidationPenaltyPercent is the liquidation penalty as a percentage.
func (r RiskParams) LiquidationPenaltyPercent() decimal.Decimal {
	return bpsToPercent(r.LiquidationPenaltyBps)
}

func bpsToPercent(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).Div(bpsPerPercent)
}

// LiquidationStatus is the clearing house's view of an account in one market.
type LiquidationStatus struct {
	Market            string
	Liquidatable      bool
	MaintenanceMargin decimal.Decimal
}
