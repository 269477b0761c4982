package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the view model state machine position.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no fetch is outstanding.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusEmpty || s == StatusFailed
}

// ViewState is the rendering-ready state of one chart.
type ViewState struct {
	Selection    Selection
	Spec         RangeSpec
	Status       Status
	CurrentPrice decimal.NullDecimal
	PriceAt      time.Time
	Change       *Change
	Points       []Sample // area/line charts
	Candles      []Candle // candlestick charts
	Err          string
	Seq          uint64 // bumped on every selection change
}

// Loading is true while a fetch for the current selection is outstanding.
func (v ViewState) Loading() bool { return v.Status == StatusLoading }

// HasEnoughData is true only when a series with at least two samples is displayed.
func (v ViewState) HasEnoughData() bool { return v.Status == StatusReady }
