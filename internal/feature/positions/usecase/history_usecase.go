package usecase

import (
	"context"
	"fmt"

	"futures_dashboard/internal/feature/positions/domain"
	"futures_dashboard/internal/feature/positions/domain/entity"
	sessionentity "futures_dashboard/internal/feature/session/domain/entity"
)

// History page sizes.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// HistoryUsecase lists the session account's order and trade history.
type HistoryUsecase struct {
	reader HistoryReader
}

// NewHistoryUsecase creates a HistoryUsecase.
func NewHistoryUsecase(reader HistoryReader) *HistoryUsecase {
	return &HistoryUsecase{reader: reader}
}

// Orders returns up to limit orders, newest first. Zero means DefaultHistoryLimit.
func (u *HistoryUsecase) Orders(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Order, error) {
	n, err := historyLimit(limit)
	if err != nil {
		return nil, err
	}
	return u.reader.Orders(ctx, s.Account, n)
}

// Trades returns up to limit trades, newest first. Zero means DefaultHistoryLimit.
func (u *HistoryUsecase) Trades(ctx context.Context, s sessionentity.Session, limit int) ([]entity.Trade, error) {
	n, err := historyLimit(limit)
	if err != nil {
		return nil, err
	}
	return u.reader.Trades(ctx, s.Account, n)
}

func historyLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultHistoryLimit, nil
	case limit < 0 || limit > MaxHistoryLimit:
		return 0, fmt.Errorf("%w: limit %d must be between 1 and %d", domain.ErrInvalidAmount, limit, MaxHistoryLimit)
	}
	return limit, nil
}
