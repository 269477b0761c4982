package chaingateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	mdusecase "futures_dashboard/internal/feature/marketdata/usecase"
	"futures_dashboard/internal/feature/positions/domain"
	"futures_dashboard/internal/feature/positions/domain/entity"
	"futures_dashboard/internal/feature/positions/usecase"
	"futures_dashboard/internal/platform/externalapi/chaingateway/dto"
	"futures_dashboard/internal/platform/fixedpoint"
	"futures_dashboard/internal/platform/metrics"
	"futures_dashboard/internal/shared/ratelimiter"
)

// Client はチェーンゲートウェイ経由でクリアリングハウスを読み書きするクライアントです。
type Client struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.RateLimiterInterface
}

// Clientが各ユースケースのポートを実装していることをコンパイル時に検証します。
var (
	_ usecase.ChainReader       = (*Client)(nil)
	_ usecase.TxSubmitter       = (*Client)(nil)
	_ mdusecase.MarkPriceSource = (*Client)(nil)
)

// NewClient は指定された設定とHTTPクライアントでClientを生成します。
// limiterがnilの場合はレート制限を行いません。
func NewClient(cfg Config, client *http.Client, limiter ratelimiter.RateLimiterInterface) *Client {
	return &Client{cfg: cfg, client: client, limiter: limiter}
}

// Position は口座とマーケットIDに対応するポジションを取得し、表示単位に変換して返します。
func (c *Client) Position(ctx context.Context, account, marketID string) (entity.Position, error) {
	var body dto.PositionResponse
	if err := c.get(ctx, "position", fmt.Sprintf("/positions/%s/%s", url.PathEscape(account), url.PathEscape(marketID)), &body); err != nil {
		return entity.Position{}, err
	}

	p := entity.Position{MarketID: marketID}
	var perr error
	// 18桁固定小数点の整数文字列をパース
	parse := func(name, raw string, dst *decimal.Decimal) {
		if perr != nil {
			return
		}
		v, err := display(raw)
		if err != nil {
			perr = fmt.Errorf("%w: parse %s %q: %w", domain.ErrUpstreamUnavailable, name, raw, err)
			return
		}
		*dst = v
	}
	parse("size", body.Size, &p.Size)
	parse("margin", body.Margin, &p.Margin)
	parse("entryPriceX18", body.EntryPriceX18, &p.EntryPrice)
	parse("lastFundingIndex", body.LastFundingIndex, &p.LastFundingIndex)
	parse("realizedPnL", body.RealizedPnL, &p.RealizedPnL)
	if perr != nil {
		return entity.Position{}, perr
	}
	return p, nil
}

// AccountValue は口座の担保評価額を取得します。
func (c *Client) AccountValue(ctx context.Context, account string) (decimal.Decimal, error) {
	var body dto.AccountValueResponse
	if err := c.get(ctx, "account_value", fmt.Sprintf("/accounts/%s/value", url.PathEscape(account)), &body); err != nil {
		return decimal.Zero, err
	}
	v, err := display(body.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse value %q: %w", domain.ErrUpstreamUnavailable, body.Value, err)
	}
	return v, nil
}

// RiskParams はマーケットのリスクパラメータを取得します。
func (c *Client) RiskParams(ctx context.Context, marketID string) (entity.RiskParams, error) {
	var body dto.RiskParamsResponse
	if err := c.get(ctx, "risk_params", fmt.Sprintf("/markets/%s/risk", url.PathEscape(marketID)), &body); err != nil {
		return entity.RiskParams{}, err
	}

	var rp entity.RiskParams
	bps := []struct {
		name string
		raw  string
		dst  *int64
	}{
		{"imrBps", body.IMRBps, &rp.IMRBps},
		{"mmrBps", body.MMRBps, &rp.MMRBps},
		{"liquidationPenaltyBps", body.LiquidationPenaltyBps, &rp.LiquidationPenaltyBps},
	}
	for _, b := range bps {
		v, err := strconv.ParseInt(strings.TrimSpace(b.raw), 10, 64)
		if err != nil {
			return entity.RiskParams{}, fmt.Errorf("%w: parse %s %q: %w", domain.ErrUpstreamUnavailable, b.name, b.raw, err)
		}
		*b.dst = v
	}
	penaltyCap, err := display(body.PenaltyCap)
	if err != nil {
		return entity.RiskParams{}, fmt.Errorf("%w: parse penaltyCap %q: %w", domain.ErrUpstreamUnavailable, body.PenaltyCap, err)
	}
	rp.PenaltyCap = penaltyCap
	return rp, nil
}

// Liquidation は口座が清算対象かどうかと維持証拠金を取得します。
func (c *Client) Liquidation(ctx context.Context, account, marketID string) (entity.LiquidationStatus, error) {
	var body dto.LiquidationResponse
	path := fmt.Sprintf("/markets/%s/liquidation/%s", url.PathEscape(marketID), url.PathEscape(account))
	if err := c.get(ctx, "liquidation", path, &body); err != nil {
		return entity.LiquidationStatus{}, err
	}
	mm, err := display(body.MaintenanceMargin)
	if err != nil {
		return entity.LiquidationStatus{}, fmt.Errorf("%w: parse maintenanceMargin %q: %w", domain.ErrUpstreamUnavailable, body.MaintenanceMargin, err)
	}
	return entity.LiquidationStatus{Liquidatable: body.Liquidatable, MaintenanceMargin: mm}, nil
}

// MarkPrice はvAMMのマーク価格を取得します。
func (c *Client) MarkPrice(ctx context.Context, ammAddress string) (decimal.Decimal, error) {
	var body dto.MarkPriceResponse
	if err := c.get(ctx, "mark_price", fmt.Sprintf("/amm/%s/mark", url.PathEscape(ammAddress)), &body); err != nil {
		return decimal.Zero, err
	}
	p, err := display(body.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse price %q: %w", domain.ErrUpstreamUnavailable, body.Price, err)
	}
	return p, nil
}

// Submit はトランザクションをゲートウェイに送信し、トランザクションハッシュを返します。
// ゲートウェイが422を返した場合はシミュレーション段階で拒否されたものとして扱います。
func (c *Client) Submit(ctx context.Context, call entity.ContractCall) (string, error) {
	req := dto.TxRequest{
		RequestID: call.RequestID,
		To:        call.To,
		Method:    call.Method,
		Args:      call.Args,
		From:      call.From,
	}
	var body dto.TxResponse
	if err := c.post(ctx, "submit", "/tx", req, &body); err != nil {
		return "", err
	}
	if body.Hash == "" {
		return "", fmt.Errorf("%w: empty transaction hash", domain.ErrUpstreamUnavailable)
	}
	return body.Hash, nil
}

// Receipt はトランザクションの現在の状態を取得します。
func (c *Client) Receipt(ctx context.Context, hash string) (entity.TxStatus, error) {
	var body dto.ReceiptResponse
	if err := c.get(ctx, "receipt", fmt.Sprintf("/tx/%s/receipt", url.PathEscape(hash)), &body); err != nil {
		return "", err
	}
	switch s := entity.TxStatus(body.Status); s {
	case entity.TxPending, entity.TxSuccess, entity.TxReverted:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown receipt status %q", domain.ErrUpstreamUnavailable, body.Status)
	}
}

func (c *Client) get(ctx context.Context, endpoint, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, endpoint, req, out)
}

func (c *Client) post(ctx context.Context, endpoint, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, endpoint, req, out)
}

func (c *Client) do(ctx context.Context, endpoint string, req *http.Request, out any) (err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.GatewayCalls.WithLabelValues(endpoint, status).Inc()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %w", domain.ErrUpstreamUnavailable, err)
		}
	}

	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	// リクエストを実行
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, endpoint, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		msg := readError(res.Body)
		if endpoint == "submit" && res.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s", domain.ErrTransactionRejected, msg)
		}
		return fmt.Errorf("%w: gateway %s http %d: %s", domain.ErrUpstreamUnavailable, endpoint, res.StatusCode, msg)
	}

	// JSONレスポンスをDTOにデコード
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", domain.ErrUpstreamUnavailable, endpoint, err)
	}
	return nil
}

func readError(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil {
		return ""
	}
	var body dto.ErrorResponse
	if err := json.Unmarshal(b, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(b))
}

// display は18桁固定小数点の整数文字列を表示単位に変換します。空文字は0として扱います。
func display(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return fixedpoint.ToDisplayString(raw, fixedpoint.Decimals18)
}
