// Package router wires the HTTP routes of the service.
package router

import (
	"github.com/gin-gonic/gin"

	charthandler "futures_dashboard/internal/feature/marketdata/transport/handler"
	positionshandler "futures_dashboard/internal/feature/positions/transport/handler"
	sessionhandler "futures_dashboard/internal/feature/session/transport/handler"
	platformhandler "futures_dashboard/internal/platform/http/handler"
	jwtmw "futures_dashboard/internal/platform/jwt"
	"futures_dashboard/internal/platform/metrics"
)

func NewRouter(tokens *jwtmw.Generator, health *platformhandler.HealthHandler, session *sessionhandler.SessionHandler,
	charts *charthandler.ChartHandler, positions *positionshandler.PositionsHandler, history *positionshandler.HistoryHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 認証不要
	// 導通確認用（DB・Redisの疎通も確認）
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)
	// Prometheus メトリクス
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	// ウォレット接続（JWT 発行）
	r.POST("/session", session.Create)
	// マーケット一覧
	r.GET("/markets", charts.ListMarkets)
	// チャート（index は銘柄省略可）
	r.GET("/charts/:kind", charts.GetChart)
	r.GET("/charts/:kind/:market", charts.GetChart)
	// ライブチャート（WebSocket）
	r.GET("/ws/charts/:kind/:market", charts.Stream)

	// 認証必須のルート
	// jwtmw.AuthRequired() ミドルウェアを適用
	// → リクエストヘッダーにウォレットセッションの JWT が必要になる
	auth := r.Group("/")
	auth.Use(jwtmw.AuthRequired(tokens))
	{
		auth.GET("/positions", positions.ListPositions)
		auth.GET("/portfolio", positions.GetPortfolio)
		auth.GET("/portfolio/orders", history.ListOrders)
		auth.GET("/portfolio/trades", history.ListTrades)
		auth.GET("/markets/:market/risk", positions.GetRisk)

		auth.POST("/trade/open", positions.OpenPosition)
		auth.POST("/trade/close", positions.ClosePosition)

		auth.POST("/collateral/deposit", positions.Deposit)
		auth.POST("/collateral/withdraw", positions.Withdraw)
		auth.POST("/collateral/approve", positions.Approve)
		// テストネット用の担保トークン発行
		auth.POST("/collateral/mint", positions.Mint)
	}

	return r
}
