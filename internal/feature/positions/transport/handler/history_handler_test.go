package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_dashboard/internal/feature/positions/domain"
	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/feature/positions/transport/handler"
	"futures_dashboard/internal/feature/positions/transport/http/dto"
	sessionentity "futures_dashboard/internal/feature/session/domain/entity"
	jwtmw "futures_dashboard/internal/platform/jwt"
)

// mockHistoryUsecase は HistoryUsecase インターフェースのモック実装です。
type mockHistoryUsecase struct {
	OrdersFunc func(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Order, error)
	TradesFunc func(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Trade, error)
}

func (m *mockHistoryUsecase) Orders(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Order, error) {
	return m.OrdersFunc(ctx, s, limit)
}

func (m *mockHistoryUsecase) Trades(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Trade, error) {
	return m.TradesFunc(ctx, s, limit)
}

func newHistoryRouter(u handler.HistoryUsecase, authed bool) *gin.Engine {
	h := handler.NewHistoryHandler(u)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if authed {
			c.Set(jwtmw.ContextSession, sessionentity.Session{Account: account, ChainID: 11155111})
		}
		c.Next()
	})
	r.GET("/portfolio/orders", h.ListOrders)
	r.GET("/portfolio/trades", h.ListTrades)
	return r
}

func TestHistoryHandler_Unauthorized(t *testing.T) {
	t.Parallel()

	r := newHistoryRouter(&mockHistoryUsecase{}, false)
	for _, path := range []string{"/portfolio/orders", "/portfolio/trades"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestHistoryHandler_ListOrders(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 11, 7, 12, 0, 0, 0, time.UTC)
	orders := []entity.Order{
		{
			RequestID: "r2", Account: account, Action: entity.ActionOpen, Market: "H100-GPU-PERP",
			Type: entity.OrderLimit, Side: entity.SideBuy, Price: decimal.NewNullDecimal(d("3.5")),
			Amount: d("1.5"), Status: entity.OrderFilled, TxHash: "0xabc", CreatedAt: at,
		},
		{
			RequestID: "r1", Account: account, Action: entity.ActionDeposit, Market: "mUSDC",
			Amount: d("100"), Status: entity.OrderFailed, CreatedAt: at.Add(-time.Minute),
		},
	}

	tests := []struct {
		name      string
		query     string
		err       error
		wantCode  int
		wantLimit int
	}{
		{name: "default limit", wantCode: http.StatusOK, wantLimit: 0},
		{name: "explicit limit", query: "?limit=10", wantCode: http.StatusOK, wantLimit: 10},
		{name: "limit not a number", query: "?limit=ten", wantCode: http.StatusBadRequest},
		{name: "limit too large", query: "?limit=500", wantCode: http.StatusBadRequest},
		{name: "reader failure", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
		{name: "usecase rejects limit", query: "?limit=5", err: domain.ErrInvalidAmount, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotLimit := -1
			u := &mockHistoryUsecase{
				OrdersFunc: func(_ context.Context, s sessionentity.Session, limit int) ([]entity.Order, error) {
					assert.Equal(t, account, s.Account)
					gotLimit = limit
					return orders, tt.err
				},
			}
			w := do(newHistoryRouter(u, true), http.MethodGet, "/portfolio/orders"+tt.query, "")
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantLimit, gotLimit)

			var got dto.OrdersResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, account, got.Account)
			require.Len(t, got.Orders, 2)

			first := got.Orders[0]
			assert.Equal(t, "r2", first.RequestID)
			assert.Equal(t, "limit", first.OrderType)
			assert.Equal(t, "Buy", first.Side)
			require.NotNil(t, first.Price)
			assert.Equal(t, "3.5", *first.Price)
			assert.Equal(t, "1.5", first.Amount)
			assert.Equal(t, "filled", first.Status)
			assert.True(t, at.Equal(first.CreatedAt))

			second := got.Orders[1]
			assert.Equal(t, "deposit", second.Action)
			assert.Nil(t, second.Price)
			assert.Empty(t, second.Side)
			assert.Equal(t, "failed", second.Status)
		})
	}
}

func TestHistoryHandler_ListTrades(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 11, 7, 12, 0, 0, 0, time.UTC)
	u := &mockHistoryUsecase{
		TradesFunc: func(_ context.Context, s sessionentity.Session, limit int) ([]entity.Trade, error) {
			assert.Equal(t, account, s.Account)
			assert.Equal(t, 0, limit)
			return []entity.Trade{
				{RequestID: "t1", Market: "H100-GPU-PERP", Side: entity.SideSell, Price: decimal.NewNullDecimal(d("2.15")), Amount: d("0.5"), TxHash: "0xt1", CreatedAt: at},
				{RequestID: "t0", Market: "H100-GPU-PERP", Side: entity.SideClose, Amount: d("1"), TxHash: "0xt0", CreatedAt: at.Add(-time.Hour)},
			}, nil
		},
	}
	w := do(newHistoryRouter(u, true), http.MethodGet, "/portfolio/trades", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got dto.TradesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Trades, 2)
	require.NotNil(t, got.Trades[0].Price)
	assert.Equal(t, "2.15", *got.Trades[0].Price)
	assert.Equal(t, "Sell", got.Trades[0].Side)
	assert.Nil(t, got.Trades[1].Price)
	assert.Equal(t, "Close", got.Trades[1].Side)
}

func TestHistoryHandler_EmptyHistory(t *testing.T) {
	t.Parallel()

	u := &mockHistoryUsecase{
		TradesFunc: func(context.Context, sessionentity.Session, int) ([]entity.Trade, error) { return nil, nil },
	}
	w := do(newHistoryRouter(u, true), http.MethodGet, "/portfolio/trades", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"account":"`+account+`","trades":[]}`, w.Body.String())
}
