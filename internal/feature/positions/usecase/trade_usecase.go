package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/positions/domain"
	"futures_dashboard/internal/feature/positions/domain/entity"
	sessionentity "futures_dashboard/internal/feature/session/domain/entity"
	"futures_dashboard/internal/platform/fixedpoint"
	"futures_dashboard/internal/platform/metrics"
	"futures_dashboard/internal/platform/pricecell"
	"futures_dashboard/internal/platform/registry"
)

// Receipt polling defaults.
const (
	DefaultReceiptPoll    = 2 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
)

// DefaultMintAmount is the testnet faucet amount in display units.
const DefaultMintAmount = "10000"

// historyWriteTimeout bounds a single trade log write.
const historyWriteTimeout = 5 * time.Second

// OpenRequest opens or increases a position.
type OpenRequest struct {
	Market     string
	Long       bool
	Size       string // base units, display scale
	PriceLimit string // empty means no limit
}

// CloseRequest reduces a position by Size.
type CloseRequest struct {
	Market     string
	Size       string
	PriceLimit string
}

// CollateralRequest moves Amount of Token into or out of the clearing house.
type CollateralRequest struct {
	Token  string // token address
	Amount string
}

// ApproveRequest grants Spender an ERC-20 allowance. An empty Spender means
// the collateral vault, which is what pulls deposited tokens.
type ApproveRequest struct {
	Token   string
	Spender string
	Amount  string
}

// MintRequest mints testnet collateral to the session account. An empty
// Amount mints DefaultMintAmount.
type MintRequest struct {
	Token  string
	Amount string
}

// TradeUsecase submits user actions to the clearing house and waits for their
// receipts. Each (account, action, target) may have only one submission in
// flight; failures are reported, never retried.
type TradeUsecase struct {
	chain   TxSubmitter
	catalog Catalog
	poll    time.Duration
	timeout time.Duration
	newID   func() string
	now     func() time.Time
	log     TradeLog
	prices  *pricecell.Board

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewTradeUsecase creates a TradeUsecase. Non-positive durations use the defaults.
func NewTradeUsecase(chain TxSubmitter, catalog Catalog, poll, timeout time.Duration) *TradeUsecase {
	if poll <= 0 {
		poll = DefaultReceiptPoll
	}
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	return &TradeUsecase{
		chain:   chain,
		catalog: catalog,
		poll:    poll,
		timeout: timeout,
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
		pending: make(map[string]struct{}),
	}
}

// WithHistory records every submission in log. Confirmed trades take their
// price from prices, which may be nil.
func (u *TradeUsecase) WithHistory(log TradeLog, prices *pricecell.Board) *TradeUsecase {
	u.log = log
	u.prices = prices
	return u
}

// OpenPosition opens a long or short position of req.Size in req.Market.
func (u *TradeUsecase) OpenPosition(ctx context.Context, s sessionentity.Session, req OpenRequest) (entity.TxResult, error) {
	m, err := u.market(req.Market)
	if err != nil {
		return u.invalid(entity.ActionOpen, err)
	}
	if m.Deprecated {
		return u.invalid(entity.ActionOpen, fmt.Errorf("%w: %s", domain.ErrMarketDeprecated, m.Symbol))
	}
	size, err := positiveRaw(req.Size, fixedpoint.Decimals18)
	if err != nil {
		return u.invalid(entity.ActionOpen, err)
	}
	limit, err := priceLimit(req.PriceLimit)
	if err != nil {
		return u.invalid(entity.ActionOpen, err)
	}

	side := entity.SideSell
	if req.Long {
		side = entity.SideBuy
	}

	return u.submit(ctx, positionTicket(entity.ActionOpen, m.Symbol, side, size, limit), entity.ContractCall{
		To:     u.catalog.Contracts().ClearingHouse,
		Method: "openPosition",
		Args:   []string{m.MarketID, strconv.FormatBool(req.Long), size.String(), limit.String()},
		From:   s.Account,
	})
}

// ClosePosition reduces the position in req.Market by req.Size. Deprecated
// markets accept closes.
func (u *TradeUsecase) ClosePosition(ctx context.Context, s sessionentity.Session, req CloseRequest) (entity.TxResult, error) {
	m, err := u.market(req.Market)
	if err != nil {
		return u.invalid(entity.ActionClose, err)
	}
	size, err := positiveRaw(req.Size, fixedpoint.Decimals18)
	if err != nil {
		return u.invalid(entity.ActionClose, err)
	}
	limit, err := priceLimit(req.PriceLimit)
	if err != nil {
		return u.invalid(entity.ActionClose, err)
	}

	return u.submit(ctx, positionTicket(entity.ActionClose, m.Symbol, entity.SideClose, size, limit), entity.ContractCall{
		To:     u.catalog.Contracts().ClearingHouse,
		Method: "closePosition",
		Args:   []string{m.MarketID, size.String(), limit.String()},
		From:   s.Account,
	})
}

// Deposit moves collateral into the clearing house.
func (u *TradeUsecase) Deposit(ctx context.Context, s sessionentity.Session, req CollateralRequest) (entity.TxResult, error) {
	return u.collateral(ctx, s, entity.ActionDeposit, "deposit", req)
}

// Withdraw moves collateral out of the clearing house.
func (u *TradeUsecase) Withdraw(ctx context.Context, s sessionentity.Session, req CollateralRequest) (entity.TxResult, error) {
	return u.collateral(ctx, s, entity.ActionWithdraw, "withdraw", req)
}

func (u *TradeUsecase) collateral(ctx context.Context, s sessionentity.Session, action entity.Action, method string, req CollateralRequest) (entity.TxResult, error) {
	tk, err := u.token(req.Token)
	if err != nil {
		return u.invalid(action, err)
	}
	amount, err := positiveRaw(req.Amount, tk.Decimals)
	if err != nil {
		return u.invalid(action, err)
	}

	return u.submit(ctx, tokenTicket(action, tk, amount), entity.ContractCall{
		To:     u.catalog.Contracts().ClearingHouse,
		Method: method,
		Args:   []string{tk.Address, amount.String()},
		From:   s.Account,
	})
}

// Approve sets an ERC-20 allowance on the collateral token.
func (u *TradeUsecase) Approve(ctx context.Context, s sessionentity.Session, req ApproveRequest) (entity.TxResult, error) {
	tk, err := u.token(req.Token)
	if err != nil {
		return u.invalid(entity.ActionApprove, err)
	}
	amount, err := positiveRaw(req.Amount, tk.Decimals)
	if err != nil {
		return u.invalid(entity.ActionApprove, err)
	}
	spender := req.Spender
	if spender == "" {
		c := u.catalog.Contracts()
		spender = c.CollateralVault
		if spender == "" {
			spender = c.ClearingHouse
		}
	}

	return u.submit(ctx, tokenTicket(entity.ActionApprove, tk, amount), entity.ContractCall{
		To:     tk.Address,
		Method: "approve",
		Args:   []string{spender, amount.String()},
		From:   s.Account,
	})
}

// Mint calls the test token's faucet for the session account.
func (u *TradeUsecase) Mint(ctx context.Context, s sessionentity.Session, req MintRequest) (entity.TxResult, error) {
	tk, err := u.token(req.Token)
	if err != nil {
		return u.invalid(entity.ActionMint, err)
	}
	if strings.TrimSpace(req.Amount) == "" {
		req.Amount = DefaultMintAmount
	}
	amount, err := positiveRaw(req.Amount, tk.Decimals)
	if err != nil {
		return u.invalid(entity.ActionMint, err)
	}

	return u.submit(ctx, tokenTicket(entity.ActionMint, tk, amount), entity.ContractCall{
		To:     tk.Address,
		Method: "mint",
		Args:   []string{s.Account, amount.String()},
		From:   s.Account,
	})
}

// ticket describes a submission for the pending guard and the order history.
type ticket struct {
	action entity.Action
	target string // market symbol or token address
	market string // symbol shown in the history
	side   entity.Side
	kind   entity.OrderType
	price  decimal.NullDecimal
	amount decimal.Decimal
}

func positionTicket(action entity.Action, symbol string, side entity.Side, size, limit *big.Int) ticket {
	t := ticket{
		action: action,
		target: symbol,
		market: symbol,
		side:   side,
		kind:   entity.OrderMarket,
		amount: fixedpoint.ToDisplay(size, fixedpoint.Decimals18),
	}
	if limit.Sign() > 0 {
		t.kind = entity.OrderLimit
		t.price = decimal.NewNullDecimal(fixedpoint.ToDisplay(limit, fixedpoint.Decimals18))
	}
	return t
}

func tokenTicket(action entity.Action, tk registry.Token, amount *big.Int) ticket {
	return ticket{
		action: action,
		target: tk.Address,
		market: tk.Symbol,
		amount: fixedpoint.ToDisplay(amount, tk.Decimals),
	}
}

// submit holds the pending slot for the action, relays the call and waits for
// a terminal receipt. When the receipt wait ends first, the result is returned
// with TxPending and no error.
func (u *TradeUsecase) submit(ctx context.Context, t ticket, call entity.ContractCall) (entity.TxResult, error) {
	action := t.action
	key := strings.ToLower(call.From) + "|" + string(action) + "|" + strings.ToLower(t.target)
	if !u.acquire(key) {
		metrics.Transactions.WithLabelValues(string(action), "pending_conflict").Inc()
		return entity.TxResult{}, fmt.Errorf("%w: %s %s", domain.ErrTransactionPending, action, t.target)
	}
	defer u.release(key)

	call.RequestID = u.newID()
	res := entity.TxResult{RequestID: call.RequestID, Action: action}

	hash, err := u.chain.Submit(ctx, call)
	if err != nil {
		metrics.Transactions.WithLabelValues(string(action), resultLabel(err)).Inc()
		slog.Warn("transaction submission failed", "action", action, "account", call.From, "request_id", call.RequestID, "error", err)
		u.appendOrder(ctx, t, call, "", entity.OrderFailed)
		return res, err
	}
	res.Hash = hash
	slog.Info("transaction submitted", "action", action, "account", call.From, "request_id", call.RequestID, "hash", hash)
	u.appendOrder(ctx, t, call, hash, entity.OrderPending)

	res.Status = u.awaitReceipt(ctx, hash)
	if res.Status.Terminal() {
		u.settle(ctx, t, call, res)
	}
	switch res.Status {
	case entity.TxSuccess:
		metrics.Transactions.WithLabelValues(string(action), "confirmed").Inc()
		return res, nil
	case entity.TxReverted:
		metrics.Transactions.WithLabelValues(string(action), "rejected").Inc()
		slog.Warn("transaction reverted", "action", action, "hash", hash)
		return res, fmt.Errorf("%w: %s reverted", domain.ErrTransactionRejected, hash)
	default:
		metrics.Transactions.WithLabelValues(string(action), "unconfirmed").Inc()
		slog.Info("transaction still pending after receipt wait", "action", action, "hash", hash)
		return res, nil
	}
}

// appendOrder writes the order row. A failed write is only logged.
func (u *TradeUsecase) appendOrder(ctx context.Context, t ticket, call entity.ContractCall, hash string, status entity.OrderStatus) {
	if u.log == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	err := u.log.AppendOrder(ctx, entity.Order{
		RequestID: call.RequestID,
		Account:   call.From,
		Action:    t.action,
		Market:    t.market,
		Type:      t.kind,
		Side:      t.side,
		Price:     t.price,
		Amount:    t.amount,
		Status:    status,
		TxHash:    hash,
		CreatedAt: u.now(),
	})
	if err != nil {
		slog.Warn("order history write failed", "request_id", call.RequestID, "error", err)
	}
}

// settle records the receipt outcome, plus a trade for confirmed opens and closes.
func (u *TradeUsecase) settle(ctx context.Context, t ticket, call entity.ContractCall, res entity.TxResult) {
	if u.log == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	if err := u.log.SetOrderStatus(ctx, call.RequestID, entity.OrderStatusOf(res.Status)); err != nil {
		slog.Warn("order history update failed", "request_id", call.RequestID, "error", err)
	}
	if res.Status != entity.TxSuccess || t.side == "" {
		return
	}

	tr := entity.Trade{
		RequestID: call.RequestID,
		Account:   call.From,
		Market:    t.market,
		Side:      t.side,
		Amount:    t.amount,
		TxHash:    res.Hash,
		CreatedAt: u.now(),
	}
	if u.prices != nil {
		if q, ok := u.prices.Latest(t.market); ok {
			tr.Price = decimal.NewNullDecimal(q.Price)
		}
	}
	if err := u.log.AppendTrade(ctx, tr); err != nil {
		slog.Warn("trade history write failed", "request_id", call.RequestID, "error", err)
	}
}

// awaitReceipt polls until the receipt is terminal, the timeout elapses or ctx
// ends. Receipt read errors are retried on the next tick.
func (u *TradeUsecase) awaitReceipt(ctx context.Context, hash string) entity.TxStatus {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	ticker := time.NewTicker(u.poll)
	defer ticker.Stop()
	for {
		st, err := u.chain.Receipt(ctx, hash)
		switch {
		case err == nil && st.Terminal():
			return st
		case err != nil && ctx.Err() == nil:
			slog.Debug("receipt read failed", "hash", hash, "error", err)
		}

		select {
		case <-ctx.Done():
			return entity.TxPending
		case <-ticker.C:
		}
	}
}

func (u *TradeUsecase) acquire(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, busy := u.pending[key]; busy {
		return false
	}
	u.pending[key] = struct{}{}
	return true
}

func (u *TradeUsecase) release(key string) {
	u.mu.Lock()
	delete(u.pending, key)
	u.mu.Unlock()
}

func (u *TradeUsecase) invalid(action entity.Action, err error) (entity.TxResult, error) {
	metrics.Transactions.WithLabelValues(string(action), "invalid").Inc()
	return entity.TxResult{Action: action}, err
}

func (u *TradeUsecase) market(symbol string) (registry.Market, error) {
	m, err := u.catalog.Market(symbol)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownMarket) {
			return registry.Market{}, fmt.Errorf("%w: %s", domain.ErrUnknownMarket, symbol)
		}
		return registry.Market{}, err
	}
	return m, nil
}

func (u *TradeUsecase) token(address string) (registry.Token, error) {
	tk, err := u.catalog.Token(address)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownToken) {
			return registry.Token{}, fmt.Errorf("%w: %s", domain.ErrUnknownToken, address)
		}
		return registry.Token{}, err
	}
	return tk, nil
}

func resultLabel(err error) string {
	if errors.Is(err, domain.ErrTransactionRejected) {
		return "rejected"
	}
	return "error"
}

// positiveRaw scales s to decimals and requires a value greater than zero.
func positiveRaw(s string, decimals int32) (*big.Int, error) {
	raw, err := fixedpoint.ToRaw(s, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, s)
	}
	if raw.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be greater than zero", domain.ErrInvalidAmount, s)
	}
	return raw, nil
}

// priceLimit scales an optional 18-decimal price limit; empty is zero.
func priceLimit(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return new(big.Int), nil
	}
	raw, err := fixedpoint.ToRaw(s, fixedpoint.Decimals18)
	if err != nil {
		return nil, fmt.Errorf("%w: price limit %q", domain.ErrInvalidAmount, s)
	}
	return raw, nil
}
