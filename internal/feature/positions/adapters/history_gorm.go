// Package adapters は positions フィーチャーの永続化を提供します。
package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/feature/positions/usecase"
	"futures_dashboard/internal/platform/db"
)

const (
	OrdersTable = "orders"
	TradesTable = "trades"
)

// ErrOrderNotFound は状態を更新する注文が存在しない場合に返されます。
var ErrOrderNotFound = errors.New("order not found")

type historyGorm struct {
	db *gorm.DB
}

var (
	_ usecase.TradeLog      = (*historyGorm)(nil)
	_ usecase.HistoryReader = (*historyGorm)(nil)
)

// NewHistoryRepository は注文と約定の履歴テーブルを読み書きするリポジトリを返します。
func NewHistoryRepository(db *gorm.DB) *historyGorm {
	return &historyGorm{db: db}
}

// OrderModel は送信した注文の行です。アドレスは小文字で保存します。
type OrderModel struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"size:64;not null;uniqueIndex"`
	UserAddress string    `gorm:"column:user_address;size:42;not null;index:orders_user_created,priority:1"`
	Action      string    `gorm:"size:16;not null"`
	Market      string    `gorm:"size:64;not null"`
	OrderType   string    `gorm:"column:order_type;size:16"`
	Side        string    `gorm:"size:8"`
	Price       *string   `gorm:"type:text"`
	Amount      string    `gorm:"type:text;not null"`
	Status      string    `gorm:"size:16;not null"`
	TxHash      string    `gorm:"column:tx_hash;size:66"`
	CreatedAt   time.Time `gorm:"not null;index:orders_user_created,priority:2"`
	UpdatedAt   time.Time
}

func (OrderModel) TableName() string {
	return OrdersTable
}

// TradeModel は確定した建玉・決済の行です。
type TradeModel struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"size:64;not null;uniqueIndex"`
	UserAddress string    `gorm:"column:user_address;size:42;not null;index:trades_user_created,priority:1"`
	Market      string    `gorm:"size:64;not null"`
	Side        string    `gorm:"size:8;not null"`
	Price       *string   `gorm:"type:text"`
	Amount      string    `gorm:"type:text;not null"`
	TxHash      string    `gorm:"column:tx_hash;size:66;not null"`
	CreatedAt   time.Time `gorm:"not null;index:trades_user_created,priority:2"`
}

func (TradeModel) TableName() string {
	return TradesTable
}

// Migration は注文と約定の履歴テーブルを定義します。
func Migration() db.Migration {
	return db.Migration{Models: []any{&OrderModel{}, &TradeModel{}}}
}

// AppendOrder は注文を1行追加します。
func (r *historyGorm) AppendOrder(ctx context.Context, o entity.Order) error {
	m := OrderModel{
		RequestID:   o.RequestID,
		UserAddress: strings.ToLower(o.Account),
		Action:      string(o.Action),
		Market:      o.Market,
		OrderType:   string(o.Type),
		Side:        string(o.Side),
		Price:       nullString(o.Price),
		Amount:      o.Amount.String(),
		Status:      string(o.Status),
		TxHash:      o.TxHash,
		CreatedAt:   o.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("append order %s: %w", o.RequestID, err)
	}
	return nil
}

// SetOrderStatus は requestID の注文の状態を更新します。
func (r *historyGorm) SetOrderStatus(ctx context.Context, requestID string, status entity.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).Where("request_id = ?", requestID).Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("update order %s: %w", requestID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, requestID)
	}
	return nil
}

// AppendTrade は約定を1行追加します。
func (r *historyGorm) AppendTrade(ctx context.Context, t entity.Trade) error {
	m := TradeModel{
		RequestID:   t.RequestID,
		UserAddress: strings.ToLower(t.Account),
		Market:      t.Market,
		Side:        string(t.Side),
		Price:       nullString(t.Price),
		Amount:      t.Amount.String(),
		TxHash:      t.TxHash,
		CreatedAt:   t.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("append trade %s: %w", t.RequestID, err)
	}
	return nil
}

// Orders は account の注文を新しい順に最大 limit 件返します。
func (r *historyGorm) Orders(ctx context.Context, account string, limit int) ([]entity.Order, error) {
	var rows []OrderModel
	err := r.db.WithContext(ctx).
		Where("user_address = ?", strings.ToLower(account)).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]entity.Order, 0, len(rows))
	for _, m := range rows {
		amount, err := decimal.NewFromString(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("order %s amount %q: %w", m.RequestID, m.Amount, err)
		}
		price, err := parseNull(m.Price)
		if err != nil {
			return nil, fmt.Errorf("order %s price: %w", m.RequestID, err)
		}
		out = append(out, entity.Order{
			RequestID: m.RequestID,
			Account:   m.UserAddress,
			Action:    entity.Action(m.Action),
			Market:    m.Market,
			Type:      entity.OrderType(m.OrderType),
			Side:      entity.Side(m.Side),
			Price:     price,
			Amount:    amount,
			Status:    entity.OrderStatus(m.Status),
			TxHash:    m.TxHash,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// Trades は account の約定を新しい順に最大 limit 件返します。
func (r *historyGorm) Trades(ctx context.Context, account string, limit int) ([]entity.Trade, error) {
	var rows []TradeModel
	err := r.db.WithContext(ctx).
		Where("user_address = ?", strings.ToLower(account)).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	out := make([]entity.Trade, 0, len(rows))
	for _, m := range rows {
		amount, err := decimal.NewFromString(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("trade %s amount %q: %w", m.RequestID, m.Amount, err)
		}
		price, err := parseNull(m.Price)
		if err != nil {
			return nil, fmt.Errorf("trade %s price: %w", m.RequestID, err)
		}
		out = append(out, entity.Trade{
			RequestID: m.RequestID,
			Account:   m.UserAddress,
			Market:    m.Market,
			Side:      entity.Side(m.Side),
			Price:     price,
			Amount:    amount,
			TxHash:    m.TxHash,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func nullString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseNull(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
