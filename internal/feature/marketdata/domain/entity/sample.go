// Package entity defines the market data domain model.
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one observed price point. Immutable once received.
type Sample struct {
	Market string // empty for the index series
	Time   time.Time
	Price  decimal.Decimal
	TWAP   decimal.NullDecimal
}

// Candle is an OHLC bucket. Low <= Open, Close <= High always holds and
// BucketStart is a multiple of the bucket width since the Unix epoch.
type Candle struct {
	BucketStart time.Time
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
}

// Change is the movement between the first and last sample of a window.
type Change struct {
	Absolute decimal.Decimal
	Percent  decimal.Decimal
}
