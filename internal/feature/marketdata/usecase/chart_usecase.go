package usecase

import (
	"context"
	"errors"
	"log/slog"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/platform/pricecell"
)

// ChartUsecase serves one-shot chart states and builds live view models.
type ChartUsecase struct {
	fetcher *SeriesFetcher
	live    LiveFeed
	prices  *pricecell.Board
}

// NewChartUsecase wires the fetcher with an optional live feed and price board.
// The board, when set, receives every charted last price so other readers
// (positions, polls) share the freshest known value.
func NewChartUsecase(fetcher *SeriesFetcher, live LiveFeed, prices *pricecell.Board) *ChartUsecase {
	return &ChartUsecase{fetcher: fetcher, live: live, prices: prices}
}

// GetChart fetches sel once and returns its terminal state.
// Only an invalid kind or range is returned as an error; fetch failures are
// reported through the Failed status.
func (u *ChartUsecase) GetChart(ctx context.Context, sel entity.Selection) (entity.ViewState, error) {
	spec, err := sel.Kind.Resolve(sel.Range)
	if err != nil {
		return entity.ViewState{}, err
	}
	sel.Range = spec.Token

	series, err := u.fetcher.Fetch(ctx, sel)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return entity.ViewState{}, err
		}
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			slog.Warn("chart fetch failed", "kind", sel.Kind, "market", sel.Market, "range", sel.Range, "error", err)
		} else {
			slog.Error("chart fetch failed", "kind", sel.Kind, "market", sel.Market, "range", sel.Range, "error", err)
		}
	}

	cell := &pricecell.Cell{}
	if u.prices != nil && sel.Kind == entity.ChartAMM {
		if q, ok := u.prices.Latest(sel.Market); ok {
			cell.Offer(q)
		}
	}
	st := BuildViewState(sel, spec, series, err, cell)
	if u.prices != nil && sel.Kind == entity.ChartAMM && st.Status == entity.StatusReady {
		if q, ok := cell.Latest(); ok {
			u.prices.Offer(sel.Market, q)
		}
	}
	return st, nil
}

// NewViewModel creates a live view model for kind. The caller must Close it.
func (u *ChartUsecase) NewViewModel(ctx context.Context, kind entity.ChartKind) *ViewModel {
	return NewViewModel(ctx, kind, u.fetcher, u.live)
}
