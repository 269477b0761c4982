package entity

import "time"

// SeriesQuery is what the store is asked for: samples of one source at or after Since,
// ascending by timestamp. A zero Since means no lower bound.
type SeriesQuery struct {
	Kind   ChartKind
	Market string
	Since  time.Time
}

// Bounded reports whether the query has a lower timestamp bound.
func (q SeriesQuery) Bounded() bool { return !q.Since.IsZero() }

// Series is the result of fetching one selection.
type Series struct {
	Selection Selection
	Spec      RangeSpec
	Query     SeriesQuery
	Samples   []Sample
}

// MinSamples is the smallest series that supports change statistics and a chart.
const MinSamples = 2

// EnoughData reports whether the series can be charted.
func (s Series) EnoughData() bool { return len(s.Samples) >= MinSamples }
