package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/platform/pricecell"
	"futures_dashboard/internal/platform/registry"
	"futures_dashboard/internal/shared/ratelimiter"
)

// SampleWriter は価格履歴へサンプルを追加するリポジトリです。
type SampleWriter interface {
	Insert(ctx context.Context, kind entity.ChartKind, samples []entity.Sample) error
}

// MarkPriceSource は vAMM の現在のマーク価格を返します。
// 外部チェーンゲートウェイの実装を抽象化します。
type MarkPriceSource interface {
	MarkPrice(ctx context.Context, ammAddress string) (decimal.Decimal, error)
}

// RecordUsecase は各マーケットのマーク価格をポーリングし、価格ボードを更新します。
// record が有効なら vAMM 価格履歴にも追記し、INSERT 通知経由でライブチャートへ流れます。
type RecordUsecase struct {
	source      MarkPriceSource
	writer      SampleWriter
	board       *pricecell.Board
	markets     []registry.Market
	rateLimiter ratelimiter.RateLimiterInterface
	record      bool
	now         func() time.Time
}

// NewRecordUsecase は新しい RecordUsecase を作成します。writer が nil なら履歴には書きません。
func NewRecordUsecase(source MarkPriceSource, writer SampleWriter, board *pricecell.Board, markets []registry.Market, rl ratelimiter.RateLimiterInterface, record bool) *RecordUsecase {
	return &RecordUsecase{
		source:      source,
		writer:      writer,
		board:       board,
		markets:     markets,
		rateLimiter: rl,
		record:      record && writer != nil,
		now:         time.Now,
	}
}

// pollOne は1マーケットのマーク価格を取得してボードへ提示します。
func (u *RecordUsecase) pollOne(ctx context.Context, m registry.Market) (entity.Sample, bool, error) {
	if u.rateLimiter != nil {
		if err := u.rateLimiter.Wait(ctx); err != nil {
			return entity.Sample{}, false, err
		}
	}
	price, err := u.source.MarkPrice(ctx, m.AMMAddress)
	if err != nil {
		return entity.Sample{}, false, err
	}
	s := entity.Sample{Market: m.Symbol, Time: u.now().UTC(), Price: price}
	// 0以下のマークは未初期化の vAMM なので、ボードの既知価格を上書きしない
	if !price.IsPositive() {
		return s, false, nil
	}
	accepted := u.board.Offer(m.Symbol, pricecell.Quote{Price: price, At: s.Time})
	return s, accepted, nil
}

// PollAll は全マーケットを巡回します。1つのマーケットで失敗しても残りは続けます。
// 戻り値は価格を取得できたマーケット数です。
func (u *RecordUsecase) PollAll(ctx context.Context) int {
	var batch []entity.Sample
	ok := 0
	for _, m := range u.markets {
		if m.Deprecated {
			continue
		}
		s, accepted, err := u.pollOne(ctx, m)
		if err != nil {
			if ctx.Err() != nil {
				return ok
			}
			slog.Warn("mark price poll failed", "market", m.Symbol, "error", err)
			continue
		}
		ok++
		if accepted && u.record {
			batch = append(batch, s)
		}
	}

	if len(batch) > 0 {
		if err := u.writer.Insert(ctx, entity.ChartAMM, batch); err != nil {
			slog.Error("failed to record mark prices", "count", len(batch), "error", err)
		}
	}
	return ok
}
