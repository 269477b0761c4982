// Package handler はmarketdataフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"futures_dashboard/internal/api"
	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/feature/marketdata/transport/http/dto"
	"futures_dashboard/internal/feature/marketdata/usecase"
	"futures_dashboard/internal/platform/registry"
)

// ChartUsecase はチャート取得のユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type ChartUsecase interface {
	GetChart(ctx context.Context, sel entity.Selection) (entity.ViewState, error)
	NewViewModel(ctx context.Context, kind entity.ChartKind) *usecase.ViewModel
}

// MarketCatalog は設定済みマーケットの参照です。
type MarketCatalog interface {
	Market(symbol string) (registry.Market, error)
	DefaultMarket() registry.Market
	Markets() []registry.Market
}

// ChartHandler はチャートのHTTPリクエストを処理します。
type ChartHandler struct {
	uc      ChartUsecase
	markets MarketCatalog
}

// NewChartHandler は新しい ChartHandler を作成します。
func NewChartHandler(uc ChartUsecase, markets MarketCatalog) *ChartHandler {
	return &ChartHandler{uc: uc, markets: markets}
}

// resolve はパスとクエリから Selection を組み立てます。
// amm で銘柄が省略された場合はデフォルトマーケットを使います。
func (h *ChartHandler) resolve(c *gin.Context) (entity.Selection, int, error) {
	kind, err := entity.ParseChartKind(c.Param("kind"))
	if err != nil {
		return entity.Selection{}, http.StatusNotFound, err
	}
	sel := entity.Selection{Kind: kind, Range: entity.Range(c.Query("range"))}
	if _, err := kind.Resolve(sel.Range); err != nil {
		return entity.Selection{}, http.StatusBadRequest, err
	}
	if kind == entity.ChartIndex {
		return sel, 0, nil
	}

	symbol := c.Param("market")
	if symbol == "" {
		symbol = c.Query("market")
	}
	if symbol == "" {
		symbol = h.markets.DefaultMarket().Symbol
	}
	m, err := h.markets.Market(symbol)
	if err != nil {
		return entity.Selection{}, http.StatusNotFound, err
	}
	sel.Market = m.Symbol
	return sel, 0, nil
}

// GetChart は1回分のチャート状態を返します。取得失敗も 200 で status=failed として返します。
//
// エンドポイント例:
// GET /charts/amm/H100-GPU-PERP?range=1h
// GET /charts/index?range=max
func (h *ChartHandler) GetChart(c *gin.Context) {
	sel, status, err := h.resolve(c)
	if err != nil {
		c.JSON(status, api.ErrorResponse{Error: err.Error()})
		return
	}

	st, err := h.uc.GetChart(c.Request.Context(), sel)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, domain.ErrUnknownRange) {
			code = http.StatusBadRequest
		}
		c.JSON(code, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.NewChartResponse(st))
}

// ListMarkets は設定済みマーケットの一覧を返します。
//
// エンドポイント例:
// GET /markets
func (h *ChartHandler) ListMarkets(c *gin.Context) {
	def := h.markets.DefaultMarket().Symbol
	ms := h.markets.Markets()
	out := make([]dto.MarketResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, dto.MarketResponse{
			Symbol:      m.Symbol,
			DisplayName: m.DisplayName,
			BaseAsset:   m.BaseAsset,
			QuoteAsset:  m.QuoteAsset,
			MarketID:    m.MarketID,
			AMMAddress:  m.AMMAddress,
			Decimals:    m.Decimals,
			Deprecated:  m.Deprecated,
			Default:     m.Symbol == def,
		})
	}
	c.JSON(http.StatusOK, out)
}
