// Package handler はpositionsフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"futures_dashboard/internal/api"
	"futures_dashboard/internal/feature/positions/domain"
	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/feature/positions/transport/http/dto"
	"futures_dashboard/internal/feature/positions/usecase"
	sessionentity "futures_dashboard/internal/feature/session/domain/entity"
	jwtmw "futures_dashboard/internal/platform/jwt"
)

// PortfolioUsecase は口座の読み取りモデルを提供するユースケースです。
type PortfolioUsecase interface {
	Positions(ctx context.Context, s sessionentity.Session) ([]entity.PositionView, error)
	Summary(ctx context.Context, s sessionentity.Session) (entity.PortfolioSummary, error)
	RiskParams(ctx context.Context, symbol string) (entity.RiskParams, error)
	Liquidation(ctx context.Context, s sessionentity.Session, symbol string) (entity.LiquidationStatus, error)
}

// TradeUsecase はトランザクション送信のユースケースです。
type TradeUsecase interface {
	OpenPosition(ctx context.Context, s sessionentity.Session, req usecase.OpenRequest) (entity.TxResult, error)
	ClosePosition(ctx context.Context, s sessionentity.Session, req usecase.CloseRequest) (entity.TxResult, error)
	Deposit(ctx context.Context, s sessionentity.Session, req usecase.CollateralRequest) (entity.TxResult, error)
	Withdraw(ctx context.Context, s sessionentity.Session, req usecase.CollateralRequest) (entity.TxResult, error)
	Approve(ctx context.Context, s sessionentity.Session, req usecase.ApproveRequest) (entity.TxResult, error)
	Mint(ctx context.Context, s sessionentity.Session, req usecase.MintRequest) (entity.TxResult, error)
}

// PositionsHandler はポジション、ポートフォリオ、取引のHTTPリクエストを処理します。
// すべてのルートは jwtmw.AuthRequired の後ろに置かれる前提です。
type PositionsHandler struct {
	portfolio PortfolioUsecase
	trade     TradeUsecase
}

// NewPositionsHandler は新しい PositionsHandler を作成します。
func NewPositionsHandler(portfolio PortfolioUsecase, trade TradeUsecase) *PositionsHandler {
	return &PositionsHandler{portfolio: portfolio, trade: trade}
}

// ListPositions はセッション口座の建玉一覧を返します。
//
// エンドポイント例:
// GET /positions
func (h *PositionsHandler) ListPositions(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	views, err := h.portfolio.Positions(c.Request.Context(), s)
	if err != nil {
		writeError(c, err)
		return
	}
	out := dto.PositionsResponse{Account: s.Account, Positions: make([]dto.PositionResponse, 0, len(views))}
	for _, v := range views {
		out.Positions = append(out.Positions, dto.NewPositionResponse(v))
	}
	c.JSON(http.StatusOK, out)
}

// GetPortfolio は口座のサマリーを返します。
//
// エンドポイント例:
// GET /portfolio
func (h *PositionsHandler) GetPortfolio(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	sum, err := h.portfolio.Summary(c.Request.Context(), s)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPortfolioResponse(sum))
}

// GetRisk はマーケットのリスクパラメータと口座の清算状態を返します。
// 清算状態の取得に失敗してもリスクパラメータは返します。
//
// エンドポイント例:
// GET /markets/H100-GPU-PERP/risk
func (h *PositionsHandler) GetRisk(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	symbol := c.Param("market")
	rp, err := h.portfolio.RiskParams(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	out := dto.NewRiskResponse(rp)

	st, err := h.portfolio.Liquidation(c.Request.Context(), s, symbol)
	if err != nil {
		slog.Warn("liquidation status unavailable", "market", symbol, "account", s.Account, "error", err)
	} else {
		out.Liquidation = &dto.LiquidationResponse{
			IsLiquidatable:    st.Liquidatable,
			MaintenanceMargin: st.MaintenanceMargin.String(),
		}
	}
	c.JSON(http.StatusOK, out)
}

// OpenPosition はポジションを建てます。
//
// エンドポイント例:
// POST /trade/open {"market":"H100-GPU-PERP","side":"long","size":"1.5"}
func (h *PositionsHandler) OpenPosition(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req dto.OpenPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.trade.OpenPosition(c.Request.Context(), s, usecase.OpenRequest{
		Market:     req.Market,
		Long:       req.Side == "long",
		Size:       req.Size,
		PriceLimit: req.PriceLimit,
	})
	writeTx(c, res, err)
}

// ClosePosition はポジションを決済します。
//
// エンドポイント例:
// POST /trade/close {"market":"H100-GPU-PERP","size":"1.5"}
func (h *PositionsHandler) ClosePosition(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req dto.ClosePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.trade.ClosePosition(c.Request.Context(), s, usecase.CloseRequest{
		Market:     req.Market,
		Size:       req.Size,
		PriceLimit: req.PriceLimit,
	})
	writeTx(c, res, err)
}

// Deposit は担保を預け入れます。
//
// エンドポイント例:
// POST /collateral/deposit {"token":"0x8C68...","amount":"100"}
func (h *PositionsHandler) Deposit(c *gin.Context) {
	h.collateral(c, h.trade.Deposit)
}

// Withdraw は担保を引き出します。
//
// エンドポイント例:
// POST /collateral/withdraw {"token":"0x8C68...","amount":"100"}
func (h *PositionsHandler) Withdraw(c *gin.Context) {
	h.collateral(c, h.trade.Withdraw)
}

func (h *PositionsHandler) collateral(c *gin.Context, do func(context.Context, sessionentity.Session, usecase.CollateralRequest) (entity.TxResult, error)) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req dto.CollateralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := do(c.Request.Context(), s, usecase.CollateralRequest{Token: req.Token, Amount: req.Amount})
	writeTx(c, res, err)
}

// Approve は担保トークンの使用を許可します。spender省略時はCollateralVaultです。
//
// エンドポイント例:
// POST /collateral/approve {"token":"0x8C68...","amount":"100"}
func (h *PositionsHandler) Approve(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.trade.Approve(c.Request.Context(), s, usecase.ApproveRequest{
		Token:   req.Token,
		Spender: req.Spender,
		Amount:  req.Amount,
	})
	writeTx(c, res, err)
}

// Mint はテストネットの担保トークンをセッション口座へ発行します。amount省略時は10,000です。
//
// エンドポイント例:
// POST /collateral/mint {"token":"0x8C68..."}
func (h *PositionsHandler) Mint(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.trade.Mint(c.Request.Context(), s, usecase.MintRequest{Token: req.Token, Amount: req.Amount})
	writeTx(c, res, err)
}

// session はコンテキストからセッションを取り出します。無ければ401を返します。
func session(c *gin.Context) (sessionentity.Session, bool) {
	s, ok := jwtmw.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return sessionentity.Session{}, false
	}
	return s, true
}

// writeTx は確定済みなら200、受付済みで未確定なら202を返します。
// リバート時はハッシュを含めて422を返します。
func writeTx(c *gin.Context, res entity.TxResult, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrTransactionRejected) && res.Hash != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "tx": dto.NewTxResponse(res)})
			return
		}
		writeError(c, err)
		return
	}
	code := http.StatusOK
	if res.Status == entity.TxPending {
		code = http.StatusAccepted
	}
	c.JSON(code, dto.NewTxResponse(res))
}

// writeError はドメインエラーをHTTPステータスに変換します。
func writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrMarketDeprecated):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownMarket), errors.Is(err, domain.ErrUnknownToken):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrTransactionPending):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrTransactionRejected):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		code = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code == http.StatusInternalServerError {
		slog.Error("positions request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, api.ErrorResponse{Error: err.Error()})
}
