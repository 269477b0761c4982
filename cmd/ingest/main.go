package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"futures_dashboard/internal/app/di"
	mdadapters "futures_dashboard/internal/feature/marketdata/adapters"
	mdusecase "futures_dashboard/internal/feature/marketdata/usecase"
	"futures_dashboard/internal/platform/config"
	infradb "futures_dashboard/internal/platform/db"
	"futures_dashboard/internal/platform/pricecell"
)

// ingest はすべてのマーケットのマーク価格を一度だけ取得し、vAMM 価格履歴へ追記します。
// cron などから定期実行する想定です。
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()})))

	reg, err := di.NewRegistry(cfg.Markets.File)
	if err != nil {
		slog.Error("failed to load market registry", "error", err)
		os.Exit(1)
	}
	db, err := infradb.OpenDB(cfg.Postgres, mdadapters.Migration())
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	repo := mdadapters.NewSampleRepository(db)
	uc := mdusecase.NewRecordUsecase(di.NewGateway(cfg.Gateway), repo, pricecell.NewBoard(), reg.Markets(), nil, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n := uc.PollAll(ctx)
	if n == 0 && len(reg.Markets()) > 0 {
		slog.Error("ingest recorded no prices", "markets", len(reg.Markets()))
		os.Exit(1)
	}
	slog.Info("ingest ok", "markets_polled", n)
}
