package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/positions/domain"
	"futures_dashboard/internal/feature/positions/domain/entity"
	sessionentity "futures_dashboard/internal/feature/session/domain/entity"
	"futures_dashboard/internal/platform/pricecell"
	"futures_dashboard/internal/platform/registry"
)

// Leverage is the buying power multiple applied to account value.
const Leverage = 10

// DefaultMarkMaxAge is how old a board quote may be before positions read the
// mark price from chain instead.
const DefaultMarkMaxAge = 15 * time.Second

var leverage = decimal.NewFromInt(Leverage)

// PortfolioUsecase builds the account read model from clearing house state and
// the shared mark price board.
type PortfolioUsecase struct {
	chain      ChainReader
	catalog    Catalog
	prices     *pricecell.Board
	now        func() time.Time
	markMaxAge time.Duration

	mu   sync.RWMutex
	risk map[string]entity.RiskParams
}

// NewPortfolioUsecase creates a PortfolioUsecase. prices may be nil, in which
// case every mark price is read from chain.
func NewPortfolioUsecase(chain ChainReader, catalog Catalog, prices *pricecell.Board, now func() time.Time) *PortfolioUsecase {
	if now == nil {
		now = time.Now
	}
	return &PortfolioUsecase{
		chain:      chain,
		catalog:    catalog,
		prices:     prices,
		now:        now,
		markMaxAge: DefaultMarkMaxAge,
		risk:       make(map[string]entity.RiskParams),
	}
}

// Positions lists the account's open positions across every registry market,
// deprecated ones included so they can still be closed.
func (u *PortfolioUsecase) Positions(ctx context.Context, s sessionentity.Session) ([]entity.PositionView, error) {
	markets := u.catalog.Markets()
	views := make([]entity.PositionView, 0, len(markets))
	for _, m := range markets {
		p, err := u.chain.Position(ctx, s.Account, m.MarketID)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", m.Symbol, err)
		}
		if !p.IsOpen() {
			continue
		}
		p.Market = m.Symbol
		p.MarketID = m.MarketID

		v := Value(p, u.markPrice(ctx, m))
		v.DisplayName = m.DisplayName
		v.BaseAsset = m.BaseAsset
		views = append(views, v)
	}
	return views, nil
}

// Summary aggregates collateral value with the account's open positions.
func (u *PortfolioUsecase) Summary(ctx context.Context, s sessionentity.Session) (entity.PortfolioSummary, error) {
	value, err := u.chain.AccountValue(ctx, s.Account)
	if err != nil {
		return entity.PortfolioSummary{}, fmt.Errorf("account value: %w", err)
	}
	views, err := u.Positions(ctx, s)
	if err != nil {
		return entity.PortfolioSummary{}, err
	}
	return Summarize(s.Account, value, views), nil
}

// Summarize derives the portfolio totals. P&L percent is realized P&L over
// account value and is zero when the account has no positive value.
func Summarize(account string, value decimal.Decimal, views []entity.PositionView) entity.PortfolioSummary {
	sum := entity.PortfolioSummary{
		Account:       account,
		AccountValue:  value,
		OpenPositions: len(views),
	}
	for _, v := range views {
		sum.TotalMargin = sum.TotalMargin.Add(v.Margin)
		sum.TotalRealizedPnL = sum.TotalRealizedPnL.Add(v.RealizedPnL)
		sum.TotalUnrealizedPnL = sum.TotalUnrealizedPnL.Add(v.UnrealizedPnL)
	}
	sum.AvailableMargin = value.Sub(sum.TotalMargin)
	sum.BuyingPower = value.Mul(leverage)
	if value.Sign() > 0 {
		sum.PnLPercent = sum.TotalRealizedPnL.Div(value).Mul(hundred)
	}
	return sum
}

// RiskParams returns the cached parameters for symbol, reading them from chain
// on a miss.
func (u *PortfolioUsecase) RiskParams(ctx context.Context, symbol string) (entity.RiskParams, error) {
	m, err := u.market(symbol)
	if err != nil {
		return entity.RiskParams{}, err
	}
	u.mu.RLock()
	rp, ok := u.risk[m.Symbol]
	u.mu.RUnlock()
	if ok {
		return rp, nil
	}
	return u.loadRisk(ctx, m)
}

// RefreshRisk re-reads risk parameters for every active market and returns how
// many were updated. Failures keep the previous value.
func (u *PortfolioUsecase) RefreshRisk(ctx context.Context) int {
	n := 0
	for _, m := range u.catalog.Markets() {
		if m.Deprecated {
			continue
		}
		if _, err := u.loadRisk(ctx, m); err != nil {
			slog.Warn("risk params refresh failed", "market", m.Symbol, "error", err)
			continue
		}
		n++
	}
	return n
}

func (u *PortfolioUsecase) loadRisk(ctx context.Context, m registry.Market) (entity.RiskParams, error) {
	rp, err := u.chain.RiskParams(ctx, m.MarketID)
	if err != nil {
		return entity.RiskParams{}, fmt.Errorf("risk params %s: %w", m.Symbol, err)
	}
	rp.Market = m.Symbol
	u.mu.Lock()
	u.risk[m.Symbol] = rp
	u.mu.Unlock()
	return rp, nil
}

// Liquidation reports whether the account can be liquidated in symbol.
func (u *PortfolioUsecase) Liquidation(ctx context.Context, s sessionentity.Session, symbol string) (entity.LiquidationStatus, error) {
	m, err := u.market(symbol)
	if err != nil {
		return entity.LiquidationStatus{}, err
	}
	st, err := u.chain.Liquidation(ctx, s.Account, m.MarketID)
	if err != nil {
		return entity.LiquidationStatus{}, fmt.Errorf("liquidation %s: %w", m.Symbol, err)
	}
	st.Market = m.Symbol
	return st, nil
}

// markPrice prefers a recent board quote and falls back to a chain read.
// An unavailable mark is returned as an invalid NullDecimal.
func (u *PortfolioUsecase) markPrice(ctx context.Context, m registry.Market) decimal.NullDecimal {
	if u.prices != nil {
		if q, ok := u.prices.Latest(m.Symbol); ok && u.now().Sub(q.At) <= u.markMaxAge {
			return decimal.NewNullDecimal(q.Price)
		}
	}

	price, err := u.chain.MarkPrice(ctx, m.AMMAddress)
	if err != nil {
		slog.Warn("mark price unavailable", "market", m.Symbol, "error", err)
		return decimal.NullDecimal{}
	}
	if price.Sign() <= 0 {
		return decimal.NullDecimal{}
	}
	if u.prices != nil {
		u.prices.Offer(m.Symbol, pricecell.Quote{Price: price, At: u.now()})
	}
	return decimal.NewNullDecimal(price)
}

func (u *PortfolioUsecase) market(symbol string) (registry.Market, error) {
	m, err := u.catalog.Market(symbol)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownMarket) {
			return registry.Market{}, fmt.Errorf("%w: %s", domain.ErrUnknownMarket, symbol)
		}
		return registry.Market{}, err
	}
	return m, nil
}
