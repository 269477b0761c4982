package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/feature/marketdata/usecase"
	"futures_dashboard/internal/platform/db"
)

// 価格は小数を文字列のまま保存し、浮動小数点を経由させない。
const (
	IndexTable = "price_data"
	AMMTable   = "vamm_price_history"

	// IndexChannel / AMMChannel は INSERT 通知の LISTEN チャンネル名です。
	IndexChannel = "price_data_inserts"
	AMMChannel   = "vamm_price_history_inserts"
)

type sampleGorm struct {
	db *gorm.DB
}

var _ usecase.SampleRepository = (*sampleGorm)(nil)

// NewSampleRepository は価格履歴テーブルを読む SampleRepository を返します。
func NewSampleRepository(db *gorm.DB) *sampleGorm {
	return &sampleGorm{db: db}
}

// IndexPriceModel はオラクルのインデックス価格の行です。
type IndexPriceModel struct {
	ID        uint      `gorm:"primaryKey"`
	Price     string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:price_data_ts"`
}

func (IndexPriceModel) TableName() string {
	return IndexTable
}

// VAMMPriceModel は vAMM のマーク価格の行です。
type VAMMPriceModel struct {
	ID        uint      `gorm:"primaryKey"`
	Market    string    `gorm:"size:64;not null;index:vamm_market_ts,priority:1"`
	Price     string    `gorm:"type:text;not null"`
	TWAP      *string   `gorm:"column:twap;type:text"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:vamm_market_ts,priority:2"`
}

func (VAMMPriceModel) TableName() string {
	return AMMTable
}

// notifyFunctionSQL は挿入行を JSON にして TG_ARGV[0] のチャンネルへ通知します。
const notifyFunctionSQL = `CREATE OR REPLACE FUNCTION notify_price_insert() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify(TG_ARGV[0], row_to_json(NEW)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`

func triggerSQL(table, channel string) []string {
	name := table + "_notify"
	return []string{
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, name, table),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT ON %s FOR EACH ROW EXECUTE FUNCTION notify_price_insert('%s')`, name, table, channel),
	}
}

// Migration は価格履歴テーブルと Postgres の INSERT 通知トリガーを定義します。
func Migration() db.Migration {
	stmts := []string{notifyFunctionSQL}
	stmts = append(stmts, triggerSQL(IndexTable, IndexChannel)...)
	stmts = append(stmts, triggerSQL(AMMTable, AMMChannel)...)
	return db.Migration{
		Models:     []any{&IndexPriceModel{}, &VAMMPriceModel{}},
		Statements: stmts,
	}
}

// ChannelFor はチャートの種類に対応する通知チャンネルを返します。
func ChannelFor(kind entity.ChartKind) string {
	if kind == entity.ChartAMM {
		return AMMChannel
	}
	return IndexChannel
}

// FindSeries は q に一致する行を timestamp 昇順で返します。
// index 系列には銘柄列がないため q.Market は無視されます。
func (r *sampleGorm) FindSeries(ctx context.Context, q entity.SeriesQuery) ([]entity.Sample, error) {
	switch q.Kind {
	case entity.ChartIndex:
		var rows []IndexPriceModel
		if err := r.scope(ctx, q).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]entity.Sample, 0, len(rows))
		for _, m := range rows {
			s, err := toSample("", m.Price, nil, m.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("%s id=%d: %w", IndexTable, m.ID, err)
			}
			out = append(out, s)
		}
		return out, nil

	case entity.ChartAMM:
		var rows []VAMMPriceModel
		if err := r.scope(ctx, q).Where("market = ?", q.Market).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]entity.Sample, 0, len(rows))
		for _, m := range rows {
			s, err := toSample(m.Market, m.Price, m.TWAP, m.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("%s id=%d: %w", AMMTable, m.ID, err)
			}
			out = append(out, s)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChartKind, q.Kind)
	}
}

// scope は下限時刻と昇順ソートを付けたクエリを組み立てます。
func (r *sampleGorm) scope(ctx context.Context, q entity.SeriesQuery) *gorm.DB {
	tx := r.db.WithContext(ctx)
	if q.Bounded() {
		tx = tx.Where(clause.Gte{Column: clause.Column{Name: "timestamp"}, Value: q.Since.UTC()})
	}
	return tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
}

// Insert は系列へサンプルを追加します。シードやバックフィル用です。
func (r *sampleGorm) Insert(ctx context.Context, kind entity.ChartKind, samples []entity.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx := r.db.WithContext(ctx)
	switch kind {
	case entity.ChartIndex:
		ms := make([]IndexPriceModel, 0, len(samples))
		for _, s := range samples {
			ms = append(ms, IndexPriceModel{Price: s.Price.String(), Timestamp: s.Time.UTC()})
		}
		return tx.Create(&ms).Error
	case entity.ChartAMM:
		ms := make([]VAMMPriceModel, 0, len(samples))
		for _, s := range samples {
			m := VAMMPriceModel{Market: s.Market, Price: s.Price.String(), Timestamp: s.Time.UTC()}
			if s.TWAP.Valid {
				v := s.TWAP.Decimal.String()
				m.TWAP = &v
			}
			ms = append(ms, m)
		}
		return tx.Create(&ms).Error
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownChartKind, kind)
	}
}

func toSample(market, price string, twap *string, ts time.Time) (entity.Sample, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return entity.Sample{}, fmt.Errorf("bad price %q: %w", price, err)
	}
	s := entity.Sample{Market: market, Time: ts.UTC(), Price: p}
	if twap != nil && *twap != "" {
		t, err := decimal.NewFromString(*twap)
		if err != nil {
			return entity.Sample{}, fmt.Errorf("bad twap %q: %w", *twap, err)
		}
		s.TWAP = decimal.NewNullDecimal(t)
	}
	return s, nil
}
