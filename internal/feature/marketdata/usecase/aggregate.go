// Package usecase implements market data aggregation and the chart view model.
package usecase

import (
	"time"

	"futures_dashboard/internal/feature/marketdata/domain/entity"
)

// AggregateCandles buckets an ascending sample series into OHLC candles of the given width.
//
// Buckets are aligned to the Unix epoch. Empty buckets are not synthesized, so the
// output never has more elements than the input. A non-positive width yields nil.
func AggregateCandles(samples []entity.Sample, width time.Duration) []entity.Candle {
	if len(samples) == 0 || width <= 0 {
		return nil
	}

	w := width.Nanoseconds()
	out := make([]entity.Candle, 0, len(samples))
	var cur *entity.Candle
	var curStart int64

	for _, s := range samples {
		start := floorDiv(s.Time.UnixNano(), w) * w
		if cur != nil && start == curStart {
			if s.Price.GreaterThan(cur.High) {
				cur.High = s.Price
			}
			if s.Price.LessThan(cur.Low) {
				cur.Low = s.Price
			}
			cur.Close = s.Price
			continue
		}
		if cur != nil {
			out = append(out, *cur)
		}
		curStart = start
		cur = &entity.Candle{
			BucketStart: time.Unix(0, start).UTC(),
			Open:        s.Price,
			High:        s.Price,
			Low:         s.Price,
			Close:       s.Price,
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// floorDiv rounds toward negative infinity so pre-epoch timestamps bucket consistently.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
