package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/feature/marketdata/usecase"
)

// errStore はモックと期待値の間で共有されるセンチネルエラーです。
var errStore = errors.New("store down")

// mockSampleRepository は SampleRepository インターフェースのモック実装です。
type mockSampleRepository struct {
	mu             sync.Mutex
	FindSeriesFunc func(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error)
	Queries        []entity.SeriesQuery
}

// FindSeries は FindSeriesFunc が設定されていればそれを呼び出し、受け取ったクエリを記録します。
func (m *mockSampleRepository) FindSeries(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, q)
	m.mu.Unlock()
	if m.FindSeriesFunc != nil {
		return m.FindSeriesFunc(ctx, q)
	}
	return nil, errors.New("FindSeriesFunc is not implemented")
}

func fixedClock() time.Time { return t0 }

// TestSeriesFetcher_RangeResolution はレンジトークンが正しい下限時刻に解決されることを検証します。
func TestSeriesFetcher_RangeResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		sel           entity.Selection
		expectedRange entity.Range
		expectedSince time.Time
		expectedMkt   string
	}{
		{
			name:          "max has no lower bound",
			sel:           entity.Selection{Kind: entity.ChartIndex, Range: "max"},
			expectedRange: "max",
		},
		{
			name:          "24h",
			sel:           entity.Selection{Kind: entity.ChartIndex, Range: "24h"},
			expectedRange: "24h",
			expectedSince: t0.Add(-24 * time.Hour),
		},
		{
			name:          "15d is 360h",
			sel:           entity.Selection{Kind: entity.ChartIndex, Range: "15d"},
			expectedRange: "15d",
			expectedSince: t0.Add(-360 * time.Hour),
		},
		{
			name:          "empty range uses the kind default",
			sel:           entity.Selection{Kind: entity.ChartAMM, Market: "H100-GPU-PERP"},
			expectedRange: "1h",
			expectedSince: t0.Add(-time.Hour),
			expectedMkt:   "H100-GPU-PERP",
		},
		{
			name:          "amm 2m filters by market",
			sel:           entity.Selection{Kind: entity.ChartAMM, Market: "H100-GPU-PERP", Range: "2m"},
			expectedRange: "2m",
			expectedSince: t0.Add(-2 * time.Minute),
			expectedMkt:   "H100-GPU-PERP",
		},
		{
			name:          "index ignores market",
			sel:           entity.Selection{Kind: entity.ChartIndex, Market: "H100-GPU-PERP", Range: "5d"},
			expectedRange: "5d",
			expectedSince: t0.Add(-120 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &mockSampleRepository{
				FindSeriesFunc: func(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
					return []entity.Sample{sample(-time.Minute, "1"), sample(0, "2")}, nil
				},
			}
			f := usecase.NewSeriesFetcher(repo, fixedClock)

			series, err := f.Fetch(context.Background(), tt.sel)
			require.NoError(t, err)
			require.Len(t, repo.Queries, 1)

			q := repo.Queries[0]
			assert.Equal(t, tt.sel.Kind, q.Kind)
			assert.Equal(t, tt.expectedMkt, q.Market)
			assert.True(t, tt.expectedSince.Equal(q.Since), "since: want %s got %s", tt.expectedSince, q.Since)
			assert.Equal(t, !tt.expectedSince.IsZero(), q.Bounded())
			assert.Equal(t, tt.expectedRange, series.Selection.Range)
			assert.True(t, series.EnoughData())
		})
	}
}

// TestSeriesFetcher_Outcomes は取得結果ごとの戻り値を検証します。
func TestSeriesFetcher_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		sel          entity.Selection
		findFunc     func(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error)
		expectedErr  error
		expectedCall bool
		enoughData   bool
	}{
		{
			name: "success",
			sel:  entity.Selection{Kind: entity.ChartIndex, Range: "24h"},
			findFunc: func(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
				return []entity.Sample{sample(0, "1"), sample(time.Second, "2")}, nil
			},
			expectedCall: true,
			enoughData:   true,
		},
		{
			name: "one row is not an error but not enough data",
			sel:  entity.Selection{Kind: entity.ChartIndex, Range: "24h"},
			findFunc: func(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
				return []entity.Sample{sample(0, "1")}, nil
			},
			expectedCall: true,
		},
		{
			name: "no rows",
			sel:  entity.Selection{Kind: entity.ChartAMM, Market: "H100-GPU-PERP", Range: "7d"},
			findFunc: func(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
				return nil, nil
			},
			expectedCall: true,
		},
		{
			name: "error: store failure is upstream unavailable",
			sel:  entity.Selection{Kind: entity.ChartIndex, Range: "max"},
			findFunc: func(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
				return nil, errStore
			},
			expectedErr:  domain.ErrUpstreamUnavailable,
			expectedCall: true,
		},
		{
			name:        "error: unknown range never reaches the store",
			sel:         entity.Selection{Kind: entity.ChartAMM, Market: "H100-GPU-PERP", Range: "24h"},
			expectedErr: domain.ErrUnknownRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &mockSampleRepository{FindSeriesFunc: tt.findFunc}
			f := usecase.NewSeriesFetcher(repo, fixedClock)

			series, err := f.Fetch(context.Background(), tt.sel)
			assert.Equal(t, tt.expectedCall, len(repo.Queries) == 1)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.enoughData, series.EnoughData())
		})
	}
}
