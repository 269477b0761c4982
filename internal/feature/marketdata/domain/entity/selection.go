package entity

import (
	"fmt"
	"time"

	"futures_dashboard/internal/feature/marketdata/domain"
)

// ChartKind selects the data source and presentation of a chart.
type ChartKind string

const (
	// ChartIndex is the oracle index price, drawn as an area chart over the raw series.
	ChartIndex ChartKind = "index"
	// ChartAMM is the vAMM mark price for one market, drawn as candles.
	ChartAMM ChartKind = "amm"
)

// Range is a logical time range token such as "24h" or "max".
type Range string

// RangeSpec resolves a Range. A zero Lookback means no lower bound;
// a zero BucketWidth means the raw series is passed through.
type RangeSpec struct {
	Token       Range
	Lookback    time.Duration
	BucketWidth time.Duration
	AxisFormat  string
}

const day = 24 * time.Hour

var ranges = map[ChartKind][]RangeSpec{
	ChartIndex: {
		{Token: "24h", Lookback: 24 * time.Hour, AxisFormat: "HH:mm"},
		{Token: "5d", Lookback: 5 * day, AxisFormat: "MMM dd"},
		{Token: "15d", Lookback: 15 * day, AxisFormat: "MMM dd"},
		{Token: "max", AxisFormat: "MMM dd"},
	},
	ChartAMM: {
		{Token: "2m", Lookback: 2 * time.Minute, BucketWidth: 15 * time.Second, AxisFormat: "HH:mm:ss"},
		{Token: "1h", Lookback: time.Hour, BucketWidth: 5 * time.Minute, AxisFormat: "HH:mm"},
		{Token: "4h", Lookback: 4 * time.Hour, BucketWidth: 15 * time.Minute, AxisFormat: "HH:mm"},
		{Token: "1d", Lookback: day, BucketWidth: time.Hour, AxisFormat: "MMM dd HH:mm"},
		{Token: "7d", Lookback: 7 * day, BucketWidth: 4 * time.Hour, AxisFormat: "MMM dd HH:mm"},
	},
}

var defaultRanges = map[ChartKind]Range{
	ChartIndex: "24h",
	ChartAMM:   "1h",
}

// ParseChartKind validates a chart kind string.
func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(s)
	if _, ok := ranges[k]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownChartKind, s)
	}
	return k, nil
}

// Candles reports whether the chart aggregates samples into candles.
func (k ChartKind) Candles() bool { return k == ChartAMM }

// DefaultRange is the range selected when a chart opens.
func (k ChartKind) DefaultRange() Range { return defaultRanges[k] }

// RangeOptions lists the selectable ranges in display order.
func (k ChartKind) RangeOptions() []Range {
	specs := ranges[k]
	out := make([]Range, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Token)
	}
	return out
}

// Resolve looks r up among the ranges of k. An empty r resolves to the default.
func (k ChartKind) Resolve(r Range) (RangeSpec, error) {
	if r == "" {
		r = k.DefaultRange()
	}
	for _, s := range ranges[k] {
		if s.Token == r {
			return s, nil
		}
	}
	return RangeSpec{}, fmt.Errorf("%w: %q for %s chart", domain.ErrUnknownRange, r, k)
}

// Since returns the lower timestamp bound for a fetch issued at now,
// and false when the range has no lower bound.
func (s RangeSpec) Since(now time.Time) (time.Time, bool) {
	if s.Lookback <= 0 {
		return time.Time{}, false
	}
	return now.Add(-s.Lookback), true
}

// Selection identifies what a chart shows.
type Selection struct {
	Kind   ChartKind
	Market string
	Range  Range
}
