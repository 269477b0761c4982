// Package handler はsessionフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"futures_dashboard/internal/api"
	"futures_dashboard/internal/feature/session/domain"
	"futures_dashboard/internal/feature/session/domain/entity"
	"futures_dashboard/internal/feature/session/transport/http/dto"
)

// SessionUsecase はセッション発行のユースケースです。
type SessionUsecase interface {
	Issue(ctx context.Context, account string, chainID int64) (string, entity.Session, error)
}

// SessionHandler はウォレット接続のHTTPリクエストを処理します。
type SessionHandler struct {
	uc SessionUsecase
}

// NewSessionHandler は新しい SessionHandler を作成します。
func NewSessionHandler(uc SessionUsecase) *SessionHandler {
	return &SessionHandler{uc: uc}
}

// Create は接続済みウォレットのセッショントークンを発行します。
// - 不正なリクエストやアドレスは400
// - 対象外のネットワークは409
// - 成功時はトークン付きで201
//
// エンドポイント例:
// POST /session {"account":"0x...","chainId":11155111}
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("session request validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}

	token, s, err := h.uc.Issue(c.Request.Context(), req.Account, req.ChainID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAccount):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, domain.ErrWrongNetwork):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		default:
			slog.Error("session issue failed", "error", err, "account", req.Account)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to issue session"})
		}
		return
	}
	slog.Info("session issued", "account", s.Account, "chain_id", s.ChainID, "remote_addr", c.ClientIP())
	c.JSON(http.StatusCreated, dto.SessionResponse{Token: token, Account: s.Account, ChainID: s.ChainID})
}
