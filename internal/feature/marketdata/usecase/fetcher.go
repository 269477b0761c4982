package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/platform/metrics"
)

// SampleRepository reads price samples from the backend store.
// Interfaces are defined by the consumer (usecase), not the provider (adapters).
type SampleRepository interface {
	// FindSeries returns samples matching q in ascending timestamp order.
	FindSeries(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error)
}

// SeriesFetcher resolves a selection to a store query and runs it.
type SeriesFetcher struct {
	repo SampleRepository
	now  func() time.Time
}

// NewSeriesFetcher creates a fetcher. A nil clock uses time.Now.
func NewSeriesFetcher(repo SampleRepository, now func() time.Time) *SeriesFetcher {
	if now == nil {
		now = time.Now
	}
	return &SeriesFetcher{repo: repo, now: now}
}

// Query resolves sel against the clock without touching the store.
func (f *SeriesFetcher) Query(sel entity.Selection) (entity.SeriesQuery, entity.RangeSpec, error) {
	spec, err := sel.Kind.Resolve(sel.Range)
	if err != nil {
		return entity.SeriesQuery{}, entity.RangeSpec{}, err
	}
	q := entity.SeriesQuery{Kind: sel.Kind}
	if sel.Kind == entity.ChartAMM {
		q.Market = sel.Market
	}
	if since, ok := spec.Since(f.now().UTC()); ok {
		q.Since = since
	}
	return q, spec, nil
}

// Fetch always issues a full query for sel.
//
// A series with fewer than two samples is returned without error; check
// Series.EnoughData. Store failures are wrapped in ErrUpstreamUnavailable.
func (f *SeriesFetcher) Fetch(ctx context.Context, sel entity.Selection) (entity.Series, error) {
	q, spec, err := f.Query(sel)
	if err != nil {
		return entity.Series{}, err
	}
	sel.Range = spec.Token

	started := time.Now()
	samples, err := f.repo.FindSeries(ctx, q)
	metrics.SeriesFetchDuration.WithLabelValues(string(sel.Kind)).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.SeriesFetches.WithLabelValues(string(sel.Kind), string(sel.Range), "error").Inc()
		if errors.Is(err, context.Canceled) {
			return entity.Series{}, err
		}
		return entity.Series{}, fmt.Errorf("%w: fetch %s/%s %s: %v", domain.ErrUpstreamUnavailable, sel.Kind, sel.Market, sel.Range, err)
	}

	series := entity.Series{Selection: sel, Spec: spec, Query: q, Samples: samples}
	if !series.EnoughData() {
		metrics.SeriesFetches.WithLabelValues(string(sel.Kind), string(sel.Range), "insufficient").Inc()
		slog.Info("not enough data for range", "kind", sel.Kind, "market", sel.Market, "range", sel.Range, "samples", len(samples))
		return series, nil
	}
	metrics.SeriesFetches.WithLabelValues(string(sel.Kind), string(sel.Range), "ok").Inc()
	return series, nil
}
