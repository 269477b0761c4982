package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"

	"futures_dashboard/internal/app/di"
	"futures_dashboard/internal/app/router"
	mdadapters "futures_dashboard/internal/feature/marketdata/adapters"
	charthandler "futures_dashboard/internal/feature/marketdata/transport/handler"
	mdusecase "futures_dashboard/internal/feature/marketdata/usecase"
	positionsadapters "futures_dashboard/internal/feature/positions/adapters"
	positionshandler "futures_dashboard/internal/feature/positions/transport/handler"
	positionsusecase "futures_dashboard/internal/feature/positions/usecase"
	sessionhandler "futures_dashboard/internal/feature/session/transport/handler"
	sessionusecase "futures_dashboard/internal/feature/session/usecase"
	"futures_dashboard/internal/platform/config"
	infradb "futures_dashboard/internal/platform/db"
	platformhandler "futures_dashboard/internal/platform/http/handler"
	jwtmw "futures_dashboard/internal/platform/jwt"
	"futures_dashboard/internal/platform/metrics"
	"futures_dashboard/internal/platform/pricecell"
	infraredis "futures_dashboard/internal/platform/redis"
	"futures_dashboard/internal/platform/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()})))
	gin.SetMode(cfg.App.GinMode)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := di.NewRegistry(cfg.Markets.File)
	if err != nil {
		slog.Error("failed to load market registry", "error", err, "file", cfg.Markets.File)
		os.Exit(1)
	}

	// db
	db, err := infradb.OpenDB(cfg.Postgres, mdadapters.Migration(), positionsadapters.Migration())
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("failed to get sql.DB", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	// Redis（任意）
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(ctx, cfg.Redis); err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
	} else if tmp != nil {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	// Repository / 外部API
	store := di.NewSampleStore(rdb, db, cfg.Redis.CacheTTL)
	gateway := di.NewGateway(cfg.Gateway)
	feed := mdadapters.NewPgFeed(mdadapters.PgxDialer(cfg.Postgres.DSN()))
	board := pricecell.NewBoard()
	history := positionsadapters.NewHistoryRepository(db)
	tokens := jwtmw.NewGenerator(cfg.JWT.Secret, cfg.JWT.Expiration)

	// Usecase
	chartUC := mdusecase.NewChartUsecase(mdusecase.NewSeriesFetcher(store, time.Now), feed, board)
	recordUC := mdusecase.NewRecordUsecase(gateway, store, board, reg.Markets(), nil, cfg.Polling.RecordMarks)
	portfolioUC := positionsusecase.NewPortfolioUsecase(gateway, reg, board, time.Now)
	tradeUC := positionsusecase.NewTradeUsecase(gateway, reg, cfg.Gateway.ReceiptPoll, cfg.Gateway.ReceiptTimeout).WithHistory(history, board)
	historyUC := positionsusecase.NewHistoryUsecase(history)
	sessionUC := sessionusecase.NewSessionUsecase(tokens, reg.ChainID())

	// Handler
	checks := map[string]platformhandler.Check{"postgres": sqlDB.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	healthH := platformhandler.NewHealthHandler(checks)
	chartH := charthandler.NewChartHandler(chartUC, reg)
	positionsH := positionshandler.NewPositionsHandler(portfolioUC, tradeUC)
	historyH := positionshandler.NewHistoryHandler(historyUC)
	sessionH := sessionhandler.NewSessionHandler(sessionUC)

	// ライブ更新
	go func() {
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("live feed stopped", "error", err)
		}
	}()

	// 定期更新
	sched := scheduler.New()
	if err := sched.Every("mark-price", cfg.Polling.MarkPrice, func(ctx context.Context) { recordUC.PollAll(ctx) }); err != nil {
		slog.Error("failed to schedule mark price poll", "error", err)
		os.Exit(1)
	}
	if err := sched.Every("risk-params", cfg.Polling.RiskParams, func(ctx context.Context) { portfolioUC.RefreshRisk(ctx) }); err != nil {
		slog.Error("failed to schedule risk refresh", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	go func() {
		for _, name := range sched.Names() {
			if err := sched.RunNow(name); err != nil {
				if !errors.Is(err, scheduler.ErrStopped) {
					slog.Warn("initial refresh failed", "task", name, "error", err)
				}
				return
			}
		}
	}()

	// ルータ生成
	r := router.NewRouter(tokens, healthH, sessionH, chartH, positionsH, historyH)
	srv := &http.Server{
		Addr:              cfg.App.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.App.Addr, "chain_id", reg.ChainID(), "markets", len(reg.Markets()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
