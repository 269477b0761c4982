package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_dashboard/internal/feature/positions/domain"
	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/feature/positions/transport/handler"
	"futures_dashboard/internal/feature/positions/transport/http/dto"
	"futures_dashboard/internal/feature/positions/usecase"
	sessionentity "futures_dashboard/internal/feature/session/domain/entity"
	jwtmw "futures_dashboard/internal/platform/jwt"
)

const (
	account  = "0x1111111111111111111111111111111111111111"
	mockUSDC = "0x8C68933688f94BF115ad2F9C8c8e251AE5d4ade7"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// mockPortfolioUsecase は PortfolioUsecase インターフェースのモック実装です。
type mockPortfolioUsecase struct {
	PositionsFunc   func(ctx context.Context, s sessionentity.Session) ([]entity.PositionView, error)
	SummaryFunc     func(ctx context.Context, s sessionentity.Session) (entity.PortfolioSummary, error)
	RiskParamsFunc  func(ctx context.Context, symbol string) (entity.RiskParams, error)
	LiquidationFunc func(ctx context.Context, s sessionentity.Session, symbol string) (entity.LiquidationStatus, error)
}

func (m *mockPortfolioUsecase) Positions(ctx context.Context, s sessionentity.Session) ([]entity.PositionView, error) {
	return m.PositionsFunc(ctx, s)
}

func (m *mockPortfolioUsecase) Summary(ctx context.Context, s sessionentity.Session) (entity.PortfolioSummary, error) {
	return m.SummaryFunc(ctx, s)
}

func (m *mockPortfolioUsecase) RiskParams(ctx context.Context, symbol string) (entity.RiskParams, error) {
	return m.RiskParamsFunc(ctx, symbol)
}

func (m *mockPortfolioUsecase) Liquidation(ctx context.Context, s sessionentity.Session, symbol string) (entity.LiquidationStatus, error) {
	return m.LiquidationFunc(ctx, s, symbol)
}

// mockTradeUsecase は TradeUsecase インターフェースのモック実装です。
// 受け取ったリクエストを記録し、Result/Err をそのまま返します。
type mockTradeUsecase struct {
	Result entity.TxResult
	Err    error

	open     *usecase.OpenRequest
	close    *usecase.CloseRequest
	deposit  *usecase.CollateralRequest
	withdraw *usecase.CollateralRequest
	approve  *usecase.ApproveRequest
	mint     *usecase.MintRequest
	session  sessionentity.Session
}

func (m *mockTradeUsecase) OpenPosition(ctx context.Context, s sessionentity.Session, req usecase.OpenRequest) (entity.TxResult, error) {
	m.session, m.open = s, &req
	return m.Result, m.Err
}

func (m *mockTradeUsecase) ClosePosition(ctx context.Context, s sessionentity.Session, req usecase.CloseRequest) (entity.TxResult, error) {
	m.session, m.close = s, &req
	return m.Result, m.Err
}

func (m *mockTradeUsecase) Deposit(ctx context.Context, s sessionentity.Session, req usecase.CollateralRequest) (entity.TxResult, error) {
	m.session, m.deposit = s, &req
	return m.Result, m.Err
}

func (m *mockTradeUsecase) Withdraw(ctx context.Context, s sessionentity.Session, req usecase.CollateralRequest) (entity.TxResult, error) {
	m.session, m.withdraw = s, &req
	return m.Result, m.Err
}

func (m *mockTradeUsecase) Approve(ctx context.Context, s sessionentity.Session, req usecase.ApproveRequest) (entity.TxResult, error) {
	m.session, m.approve = s, &req
	return m.Result, m.Err
}

func (m *mockTradeUsecase) Mint(ctx context.Context, s sessionentity.Session, req usecase.MintRequest) (entity.TxResult, error) {
	m.session, m.mint = s, &req
	return m.Result, m.Err
}

// newRouter はセッションを注入するミドルウェア付きのルーターを返します。
// authed が false の場合はセッションを設定しません。
func newRouter(p handler.PortfolioUsecase, tr handler.TradeUsecase, authed bool) *gin.Engine {
	h := handler.NewPositionsHandler(p, tr)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if authed {
			c.Set(jwtmw.ContextSession, sessionentity.Session{Account: account, ChainID: 11155111})
		}
		c.Next()
	})
	r.GET("/positions", h.ListPositions)
	r.GET("/portfolio", h.GetPortfolio)
	r.GET("/markets/:market/risk", h.GetRisk)
	r.POST("/trade/open", h.OpenPosition)
	r.POST("/trade/close", h.ClosePosition)
	r.POST("/collateral/deposit", h.Deposit)
	r.POST("/collateral/withdraw", h.Withdraw)
	r.POST("/collateral/approve", h.Approve)
	r.POST("/collateral/mint", h.Mint)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPositionsHandler_Unauthorized(t *testing.T) {
	t.Parallel()

	r := newRouter(&mockPortfolioUsecase{}, &mockTradeUsecase{}, false)
	for _, path := range []string{"/positions", "/portfolio", "/markets/H100-GPU-PERP/risk"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := do(r, http.MethodPost, "/trade/open", `{"market":"H100-GPU-PERP","side":"long","size":"1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPositionsHandler_ListPositions(t *testing.T) {
	t.Parallel()

	p := &mockPortfolioUsecase{
		PositionsFunc: func(_ context.Context, s sessionentity.Session) ([]entity.PositionView, error) {
			assert.Equal(t, account, s.Account)
			return []entity.PositionView{
				{
					Position:      entity.Position{Market: "H100-GPU-PERP", MarketID: "0xid", Size: d("-2"), EntryPrice: d("100"), Margin: d("50"), RealizedPnL: d("1.5")},
					DisplayName:   "ByteStrike • H100 GPU",
					BaseAsset:     "GPU-HRS",
					MarkPrice:     decimal.NewNullDecimal(d("90")),
					Notional:      d("200"),
					UnrealizedPnL: d("20"),
					PnLPercent:    d("10"),
				},
				{
					Position:  entity.Position{Market: "ETH-PERP-V2", Size: d("1"), EntryPrice: d("3.75")},
					MarkPrice: decimal.NullDecimal{},
				},
			}, nil
		},
	}
	w := do(newRouter(p, &mockTradeUsecase{}, true), http.MethodGet, "/positions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got dto.PositionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, account, got.Account)
	require.Len(t, got.Positions, 2)

	short := got.Positions[0]
	assert.Equal(t, "short", short.Direction)
	assert.True(t, short.IsShort)
	assert.False(t, short.IsLong)
	assert.Equal(t, "-2", short.Size)
	assert.Equal(t, "2.0000", short.SizeLabel)
	require.NotNil(t, short.MarkPrice)
	assert.Equal(t, "90", *short.MarkPrice)
	assert.Equal(t, "$90.00", short.MarkLabel)
	assert.Equal(t, "20", short.UnrealizedPnL)
	assert.Equal(t, "10.00", short.PnLPercent)
	assert.Equal(t, "+20.00 (+10.00%)", short.PnLLabel)

	noMark := got.Positions[1]
	assert.Nil(t, noMark.MarkPrice)
	assert.Equal(t, "N/A", noMark.MarkLabel)
	assert.Equal(t, "long", noMark.Direction)
}

func TestPositionsHandler_GetPortfolio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		summary  entity.PortfolioSummary
		err      error
		wantCode int
		check    func(t *testing.T, body []byte)
	}{
		{
			name: "ok",
			summary: entity.PortfolioSummary{
				Account: account, AccountValue: d("1234.5"), TotalMargin: d("120"), TotalRealizedPnL: d("40"),
				AvailableMargin: d("1114.5"), BuyingPower: d("12345"), PnLPercent: d("3.2402"), OpenPositions: 2,
			},
			wantCode: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var got dto.PortfolioResponse
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, "1234.5", got.AccountValue)
				assert.Equal(t, "$1,234.50", got.AccountValueLabel)
				assert.Equal(t, "1114.5", got.AvailableMargin)
				assert.Equal(t, "12345", got.BuyingPower)
				assert.Equal(t, "3.24", got.PnLPercent)
				assert.Equal(t, 2, got.OpenPositions)
			},
		},
		{
			name:     "upstream failure",
			err:      fmt.Errorf("account value: %w", domain.ErrUpstreamUnavailable),
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "unexpected failure",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &mockPortfolioUsecase{
				SummaryFunc: func(context.Context, sessionentity.Session) (entity.PortfolioSummary, error) {
					return tt.summary, tt.err
				},
			}
			w := do(newRouter(p, &mockTradeUsecase{}, true), http.MethodGet, "/portfolio", "")
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.check != nil {
				tt.check(t, w.Body.Bytes())
			}
		})
	}
}

func TestPositionsHandler_GetRisk(t *testing.T) {
	t.Parallel()

	rp := entity.RiskParams{Market: "H100-GPU-PERP", IMRBps: 1000, MMRBps: 500, LiquidationPenaltyBps: 250, PenaltyCap: d("1000")}

	tests := []struct {
		name       string
		riskErr    error
		liqErr     error
		wantCode   int
		wantLiq    bool
		wantMaxLev string
	}{
		{name: "with liquidation status", wantCode: http.StatusOK, wantLiq: true, wantMaxLev: "10.0"},
		{name: "liquidation read fails", liqErr: domain.ErrUpstreamUnavailable, wantCode: http.StatusOK, wantMaxLev: "10.0"},
		{name: "unknown market", riskErr: domain.ErrUnknownMarket, wantCode: http.StatusNotFound},
		{name: "upstream failure", riskErr: domain.ErrUpstreamUnavailable, wantCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &mockPortfolioUsecase{
				RiskParamsFunc: func(_ context.Context, symbol string) (entity.RiskParams, error) {
					assert.Equal(t, "H100-GPU-PERP", symbol)
					return rp, tt.riskErr
				},
				LiquidationFunc: func(context.Context, sessionentity.Session, string) (entity.LiquidationStatus, error) {
					return entity.LiquidationStatus{Liquidatable: true, MaintenanceMargin: d("5")}, tt.liqErr
				},
			}
			w := do(newRouter(p, &mockTradeUsecase{}, true), http.MethodGet, "/markets/H100-GPU-PERP/risk", "")
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var got dto.RiskResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, int64(1000), got.IMRBps)
			assert.Equal(t, "10", got.IMRPercent)
			assert.Equal(t, "5", got.MMRPercent)
			assert.Equal(t, "2.5", got.LiquidationPenaltyPercent)
			assert.Equal(t, tt.wantMaxLev, got.MaxLeverage)
			if tt.wantLiq {
				require.NotNil(t, got.Liquidation)
				assert.True(t, got.Liquidation.IsLiquidatable)
				assert.Equal(t, "5", got.Liquidation.MaintenanceMargin)
			} else {
				assert.Nil(t, got.Liquidation)
			}
		})
	}
}

func TestPositionsHandler_Trade(t *testing.T) {
	t.Parallel()

	confirmed := entity.TxResult{RequestID: "req-1", Action: entity.ActionOpen, Hash: "0xhash", Status: entity.TxSuccess}

	tests := []struct {
		name     string
		path     string
		body     string
		result   entity.TxResult
		err      error
		wantCode int
		check    func(t *testing.T, m *mockTradeUsecase)
	}{
		{
			name:     "open long",
			path:     "/trade/open",
			body:     `{"market":"H100-GPU-PERP","side":"long","size":"1.5","priceLimit":"3.9"}`,
			result:   confirmed,
			wantCode: http.StatusOK,
			check: func(t *testing.T, m *mockTradeUsecase) {
				require.NotNil(t, m.open)
				assert.Equal(t, usecase.OpenRequest{Market: "H100-GPU-PERP", Long: true, Size: "1.5", PriceLimit: "3.9"}, *m.open)
				assert.Equal(t, account, m.session.Account)
			},
		},
		{
			name:     "open short",
			path:     "/trade/open",
			body:     `{"market":"H100-GPU-PERP","side":"short","size":"2"}`,
			result:   confirmed,
			wantCode: http.StatusOK,
			check: func(t *testing.T, m *mockTradeUsecase) {
				require.NotNil(t, m.open)
				assert.False(t, m.open.Long)
			},
		},
		{
			name:     "invalid side",
			path:     "/trade/open",
			body:     `{"market":"H100-GPU-PERP","side":"up","size":"2"}`,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, m *mockTradeUsecase) {
				assert.Nil(t, m.open)
			},
		},
		{
			name:     "close",
			path:     "/trade/close",
			body:     `{"market":"ETH-PERP-V2","size":"0.5"}`,
			result:   confirmed,
			wantCode: http.StatusOK,
			check: func(t *testing.T, m *mockTradeUsecase) {
				require.NotNil(t, m.close)
				assert.Equal(t, "ETH-PERP-V2", m.close.Market)
			},
		},
		{
			name:     "deposit",
			path:     "/collateral/deposit",
			body:     `{"token":"` + mockUSDC + `","amount":"100"}`,
			result:   confirmed,
			wantCode: http.StatusOK,
			check: func(t *testing.T, m *mockTradeUsecase) {
				require.NotNil(t, m.deposit)
				assert.Equal(t, usecase.CollateralRequest{Token: mockUSDC, Amount: "100"}, *m.deposit)
			},
		},
		{
			name:     "withdraw pending confirmation",
			path:     "/collateral/withdraw",
			body:     `{"token":"` + mockUSDC + `","amount":"5"}`,
			result:   entity.TxResult{RequestID: "req-2", Action: entity.ActionWithdraw, Hash: "0xhash", Status: entity.TxPending},
			wantCode: http.StatusAccepted,
			check: func(t *testing.T, m *mockTradeUsecase) {
				require.NotNil(t, m.withdraw)
			},
		},
		{
			name:     "approve",
			path:     "/collateral/approve",
			body:     `{"token":"` + mockUSDC + `","amount":"100"}`,
			result:   confirmed,
			wantCode: http.StatusOK,
			check: func(t *testing.T, m *mockTradeUsecase) {
				require.NotNil(t, m.approve)
				assert.Empty(t, m.approve.Spender)
			},
		},
		{
			name:     "mint without amount",
			path:     "/collateral/mint",
			body:     `{"token":"` + mockUSDC + `"}`,
			result:   entity.TxResult{RequestID: "req-3", Action: entity.ActionMint, Hash: "0xhash", Status: entity.TxSuccess},
			wantCode: http.StatusOK,
			check: func(t *testing.T, m *mockTradeUsecase) {
				require.NotNil(t, m.mint)
				assert.Equal(t, usecase.MintRequest{Token: mockUSDC}, *m.mint)
				assert.Equal(t, account, m.session.Account)
			},
		},
		{
			name:     "mint missing token",
			path:     "/collateral/mint",
			body:     `{"amount":"5"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "approve bad spender",
			path:     "/collateral/approve",
			body:     `{"token":"` + mockUSDC + `","spender":"vault","amount":"100"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "deposit bad token address",
			path:     "/collateral/deposit",
			body:     `{"token":"usdc","amount":"1"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid amount",
			path:     "/trade/open",
			body:     `{"market":"H100-GPU-PERP","side":"long","size":"abc"}`,
			err:      domain.ErrInvalidAmount,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "deprecated market",
			path:     "/trade/open",
			body:     `{"market":"ETH-PERP-V2","side":"long","size":"1"}`,
			err:      domain.ErrMarketDeprecated,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown market",
			path:     "/trade/close",
			body:     `{"market":"NOPE","size":"1"}`,
			err:      domain.ErrUnknownMarket,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "pending",
			path:     "/trade/open",
			body:     `{"market":"H100-GPU-PERP","side":"long","size":"1"}`,
			err:      domain.ErrTransactionPending,
			wantCode: http.StatusConflict,
		},
		{
			name:     "rejected before submission",
			path:     "/collateral/deposit",
			body:     `{"token":"` + mockUSDC + `","amount":"1"}`,
			err:      domain.ErrTransactionRejected,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "gateway down",
			path:     "/collateral/deposit",
			body:     `{"token":"` + mockUSDC + `","amount":"1"}`,
			err:      domain.ErrUpstreamUnavailable,
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := &mockTradeUsecase{Result: tt.result, Err: tt.err}
			w := do(newRouter(&mockPortfolioUsecase{}, m, true), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, m)
			}
			if tt.wantCode == http.StatusOK || tt.wantCode == http.StatusAccepted {
				var got dto.TxResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, tt.result.Hash, got.Hash)
				assert.Equal(t, string(tt.result.Status), got.Status)
			}
		})
	}
}

func TestPositionsHandler_Reverted(t *testing.T) {
	t.Parallel()

	m := &mockTradeUsecase{
		Result: entity.TxResult{RequestID: "req-9", Action: entity.ActionClose, Hash: "0xdead", Status: entity.TxReverted},
		Err:    fmt.Errorf("%w: 0xdead reverted", domain.ErrTransactionRejected),
	}
	w := do(newRouter(&mockPortfolioUsecase{}, m, true), http.MethodPost, "/trade/close", `{"market":"H100-GPU-PERP","size":"1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var got struct {
		Error string         `json:"error"`
		Tx    dto.TxResponse `json:"tx"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got.Error, "reverted")
	assert.Equal(t, "0xdead", got.Tx.Hash)
	assert.Equal(t, "reverted", got.Tx.Status)
}
