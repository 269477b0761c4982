package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"futures_dashboard/internal/api"
	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/feature/positions/transport/http/dto"
	sessionentity "futures_dashboard/internal/feature/session/domain/entity"
)

// HistoryUsecase は注文・約定履歴のユースケースです。
type HistoryUsecase interface {
	Orders(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Order, error)
	Trades(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Trade, error)
}

// HistoryHandler はセッション口座の注文・約定履歴を返します。
type HistoryHandler struct {
	history HistoryUsecase
}

// NewHistoryHandler は新しい HistoryHandler を作成します。
func NewHistoryHandler(history HistoryUsecase) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListOrders は注文履歴を新しい順に返します。
//
// エンドポイント例:
// GET /portfolio/orders?limit=50
func (h *HistoryHandler) ListOrders(c *gin.Context) {
	s, limit, ok := historyRequest(c)
	if !ok {
		return
	}
	orders, err := h.history.Orders(c.Request.Context(), s, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrdersResponse(s.Account, orders))
}

// ListTrades は約定履歴を新しい順に返します。
//
// エンドポイント例:
// GET /portfolio/trades
func (h *HistoryHandler) ListTrades(c *gin.Context) {
	s, limit, ok := historyRequest(c)
	if !ok {
		return
	}
	trades, err := h.history.Trades(c.Request.Context(), s, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTradesResponse(s.Account, trades))
}

func historyRequest(c *gin.Context) (sessionentity.Session, int, bool) {
	s, ok := session(c)
	if !ok {
		return sessionentity.Session{}, 0, false
	}
	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return sessionentity.Session{}, 0, false
	}
	return s, q.Limit, true
}
