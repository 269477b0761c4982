package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// ComputeChange compares the first and last sample of an ordered window.
// The percent change is 0 when the first price is 0. Fewer than two samples
// is ErrInsufficientData; callers gate on that before calling.
func ComputeChange(samples []entity.Sample) (entity.Change, error) {
	if len(samples) < 2 {
		return entity.Change{}, fmt.Errorf("%w: change needs 2 samples, got %d", domain.ErrInsufficientData, len(samples))
	}
	first := samples[0].Price
	last := samples[len(samples)-1].Price

	abs := last.Sub(first)
	pct := decimal.Zero
	if !first.IsZero() {
		pct = abs.Div(first).Mul(hundred)
	}
	return entity.Change{Absolute: abs, Percent: pct}, nil
}
