package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/feature/marketdata/transport/handler"
	"futures_dashboard/internal/feature/marketdata/transport/http/dto"
	"futures_dashboard/internal/feature/marketdata/usecase"
	"futures_dashboard/internal/platform/registry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var t0 = time.Date(2025, 11, 7, 12, 0, 0, 0, time.UTC)

// mockChartUsecase は ChartUsecase インターフェースのモック実装です。
type mockChartUsecase struct {
	GetChartFunc func(ctx context.Context, sel entity.Selection) (entity.ViewState, error)
	fetcher      usecase.Fetcher
}

func (m *mockChartUsecase) GetChart(ctx context.Context, sel entity.Selection) (entity.ViewState, error) {
	return m.GetChartFunc(ctx, sel)
}

func (m *mockChartUsecase) NewViewModel(ctx context.Context, kind entity.ChartKind) *usecase.ViewModel {
	return usecase.NewViewModel(ctx, kind, m.fetcher, nil)
}

// stubFetcher はレンジごとに固定の系列を返します。
type stubFetcher map[entity.Range][]string

func (f stubFetcher) Fetch(ctx context.Context, sel entity.Selection) (entity.Series, error) {
	prices := f[sel.Range]
	samples := make([]entity.Sample, 0, len(prices))
	for i, p := range prices {
		samples = append(samples, entity.Sample{Market: sel.Market, Time: t0.Add(time.Duration(i) * time.Minute), Price: decimal.RequireFromString(p)})
	}
	return entity.Series{Selection: sel, Samples: samples}, nil
}

func newRouter(t *testing.T, uc handler.ChartUsecase) *gin.Engine {
	t.Helper()

	reg, err := registry.Default()
	require.NoError(t, err)

	h := handler.NewChartHandler(uc, reg)
	r := gin.New()
	r.GET("/markets", h.ListMarkets)
	r.GET("/charts/:kind", h.GetChart)
	r.GET("/charts/:kind/:market", h.GetChart)
	r.GET("/ws/charts/:kind/:market", h.Stream)
	return r
}

func readyState(sel entity.Selection) entity.ViewState {
	spec, _ := sel.Kind.Resolve(sel.Range)
	return entity.ViewState{
		Selection:    sel,
		Spec:         spec,
		Status:       entity.StatusReady,
		CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("1234.5")),
		PriceAt:      t0,
		Change:       &entity.Change{Absolute: decimal.NewFromInt(-20), Percent: decimal.NewFromInt(-20)},
		Points: []entity.Sample{
			{Time: t0.Add(-time.Hour), Price: decimal.NewFromInt(100)},
			{Time: t0, Price: decimal.NewFromInt(80)},
		},
		Seq: 1,
	}
}

// TestChartHandler_GetChart は GetChart のパラメータ解決とレスポンスを検証します。
func TestChartHandler_GetChart(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		mockGetChart   func(ctx context.Context, sel entity.Selection) (entity.ViewState, error)
		expectedStatus int
		check          func(t *testing.T, body string)
	}{
		{
			name: "success: index chart with explicit range",
			url:  "/charts/index?range=max",
			mockGetChart: func(ctx context.Context, sel entity.Selection) (entity.ViewState, error) {
				assert.Equal(t, entity.Selection{Kind: entity.ChartIndex, Range: "max"}, sel)
				return readyState(sel), nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				var res dto.ChartResponse
				require.NoError(t, json.Unmarshal([]byte(body), &res))
				assert.Equal(t, "index", res.Kind)
				assert.Equal(t, "max", res.Range)
				assert.Equal(t, []string{"24h", "5d", "15d", "max"}, res.RangeOptions)
				assert.True(t, res.HasEnoughData)
				assert.False(t, res.Loading)
				require.NotNil(t, res.CurrentPrice)
				assert.Equal(t, "1234.5", *res.CurrentPrice)
				assert.Equal(t, "$1,234.50", res.CurrentPriceLabel)
				assert.Equal(t, "-20.00 (-20.00%)", res.ChangeLabel)
				assert.False(t, res.IsPriceUp)
				assert.Len(t, res.Points, 2)
			},
		},
		{
			name: "success: amm chart defaults market and range",
			url:  "/charts/amm",
			mockGetChart: func(ctx context.Context, sel entity.Selection) (entity.ViewState, error) {
				assert.Equal(t, "H100-GPU-PERP", sel.Market)
				assert.Equal(t, entity.Range(""), sel.Range)
				return entity.ViewState{Selection: entity.Selection{Kind: entity.ChartAMM, Market: sel.Market, Range: "1h"}, Status: entity.StatusEmpty}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, `"hasEnoughData":false`)
				assert.Contains(t, body, `"currentPrice":null`)
				assert.Contains(t, body, `"currentPriceLabel":"N/A"`)
				assert.Contains(t, body, dto.MessageNotEnoughData)
			},
		},
		{
			name: "success: failed fetch is still 200 with N/A",
			url:  "/charts/amm/ETH-PERP-V2?range=7d",
			mockGetChart: func(ctx context.Context, sel entity.Selection) (entity.ViewState, error) {
				return entity.ViewState{Selection: sel, Status: entity.StatusFailed, Err: "upstream unavailable"}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, `"status":"failed"`)
				assert.Contains(t, body, `"currentPriceLabel":"N/A"`)
				assert.Contains(t, body, dto.MessageFailed)
			},
		},
		{
			name:           "error: unknown kind",
			url:            "/charts/volume",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "error: range not offered by the kind",
			url:            "/charts/amm/H100-GPU-PERP?range=24h",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error: unknown market",
			url:            "/charts/amm/DOGE-PERP",
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "error: usecase rejects range",
			url:  "/charts/index",
			mockGetChart: func(ctx context.Context, sel entity.Selection) (entity.ViewState, error) {
				return entity.ViewState{}, domain.ErrUnknownRange
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockChartUsecase{GetChartFunc: func(ctx context.Context, sel entity.Selection) (entity.ViewState, error) {
				if tt.mockGetChart == nil {
					t.Fatal("usecase must not be called")
				}
				return tt.mockGetChart(ctx, sel)
			}}
			router := newRouter(t, uc)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.check != nil {
				tt.check(t, w.Body.String())
			}
		})
	}
}

// TestChartHandler_ListMarkets はマーケット一覧のレスポンスを検証します。
func TestChartHandler_ListMarkets(t *testing.T) {
	router := newRouter(t, &mockChartUsecase{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/markets", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res []dto.MarketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res, 2)
	assert.Equal(t, "H100-GPU-PERP", res[0].Symbol)
	assert.True(t, res[0].Default)
	assert.Equal(t, registry.MarketID("H100-GPU-PERP"), res[0].MarketID)
	assert.True(t, res[1].Deprecated)
}

// TestChartHandler_Stream は WebSocket で状態が配信され、レンジ変更が反映されることを検証します。
func TestChartHandler_Stream(t *testing.T) {
	uc := &mockChartUsecase{fetcher: stubFetcher{
		"1h": {"100", "110"},
		"4h": {"90", "80", "85"},
	}}
	srv := httptest.NewServer(newRouter(t, uc))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/charts/amm/H100-GPU-PERP?range=1h"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// 同じ状態のフレームが連続して届かないことも合わせて確認する
	type frame struct {
		seq    uint64
		status string
		price  string
	}
	var prev *frame
	next := func() (dto.ChartResponse, string) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var res dto.ChartResponse
		require.NoError(t, json.Unmarshal(data, &res))
		if res.Status != "" {
			f := frame{seq: res.Seq, status: res.Status}
			if res.CurrentPrice != nil {
				f.price = *res.CurrentPrice
			}
			if prev != nil {
				assert.NotEqual(t, *prev, f, "duplicate frame: %s", data)
			}
			prev = &f
		}
		return res, string(data)
	}
	readUntil := func(done func(dto.ChartResponse) bool) dto.ChartResponse {
		t.Helper()
		for {
			res, _ := next()
			if done(res) {
				return res
			}
		}
	}

	first := readUntil(func(r dto.ChartResponse) bool { return r.Range == "1h" && !r.Loading })
	assert.Equal(t, "ready", first.Status)
	require.NotNil(t, first.CurrentPrice)
	assert.Equal(t, "110", *first.CurrentPrice)
	assert.Equal(t, "H100-GPU-PERP", first.Market)
	assert.NotEmpty(t, first.Candles)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"range":"4h"}`)))
	second := readUntil(func(r dto.ChartResponse) bool { return r.Range == "4h" && !r.Loading })
	assert.Equal(t, "ready", second.Status)
	assert.Equal(t, "85", *second.CurrentPrice)
	assert.Greater(t, second.Seq, first.Seq)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"range":"24h"}`)))
	for {
		res, raw := next()
		if res.Status != "" {
			// 24h 要求より前に発生した 4h の状態だけが許される
			assert.Equal(t, "4h", res.Range)
			continue
		}
		assert.Contains(t, raw, "unknown range")
		break
	}
}

// TestChartHandler_Stream_RejectsBeforeUpgrade は不正な選択がアップグレード前に拒否されることを検証します。
func TestChartHandler_Stream_RejectsBeforeUpgrade(t *testing.T) {
	router := newRouter(t, &mockChartUsecase{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/charts/amm/DOGE-PERP", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
