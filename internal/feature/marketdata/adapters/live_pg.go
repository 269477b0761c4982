package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/feature/marketdata/usecase"
	"futures_dashboard/internal/platform/metrics"
)

// reconnectDelay は LISTEN 接続が切れてから再接続するまでの待ち時間です。
var reconnectDelay = 2 * time.Second

// maxReconnectDelay は再接続待ちの上限です。
var maxReconnectDelay = 30 * time.Second

// NotificationConn は LISTEN に必要な pgx.Conn のメソッドです。
type NotificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer は LISTEN 用の専用接続を開きます。
type Dialer func(ctx context.Context) (NotificationConn, error)

// PgxDialer は dsn に pgx で接続する Dialer を返します。
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (NotificationConn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// PgFeed は価格履歴テーブルの INSERT 通知を購読者へ配信する LiveFeed です。
//
// 1本の接続で両チャンネルを LISTEN し、切断時は待ち時間を伸ばしながら再接続します。
// 切断中の行は再送されないため、欠損のない系列が必要な場合は取り直してください。
type PgFeed struct {
	dial Dialer

	mu   sync.Mutex
	subs map[entity.ChartKind]map[uuid.UUID]*pgSubscription

	connected chan struct{}
	once      sync.Once
}

var _ usecase.LiveFeed = (*PgFeed)(nil)

// NewPgFeed は PgFeed を作成します。配信は Run を呼ぶまで始まりません。
func NewPgFeed(dial Dialer) *PgFeed {
	return &PgFeed{
		dial:      dial,
		subs:      make(map[entity.ChartKind]map[uuid.UUID]*pgSubscription),
		connected: make(chan struct{}),
	}
}

// Connected は最初の LISTEN が成立すると close されます。
func (f *PgFeed) Connected() <-chan struct{} { return f.connected }

// Run は ctx が終わるまで通知を受信して配信します。
func (f *PgFeed) Run(ctx context.Context) error {
	b := backoff{min: reconnectDelay, max: maxReconnectDelay}
	for {
		listened, err := f.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if listened {
			b.reset()
		}
		delay := b.next()
		slog.Warn("live feed disconnected, reconnecting", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff は min から倍々に伸び、max で頭打ちになる待ち時間です。
type backoff struct {
	min, max time.Duration
	cur      time.Duration
}

func (b *backoff) next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
	}
	d := b.cur
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	return d
}

// reset は LISTEN が成立した後に呼ばれ、次の待ちを min に戻します。
func (b *backoff) reset() { b.cur = 0 }

// listen は LISTEN が成立したかどうかと、接続が終わった理由を返します。
func (f *PgFeed) listen(ctx context.Context) (bool, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	for _, ch := range []string{IndexChannel, AMMChannel} {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			return false, fmt.Errorf("listen %s: %w", ch, err)
		}
	}
	slog.Info("live feed listening", "channels", []string{IndexChannel, AMMChannel})
	f.once.Do(func() { close(f.connected) })

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		f.dispatch(n.Channel, n.Payload)
	}
}

// rowPayload は row_to_json(NEW) の形です。
type rowPayload struct {
	Market    string  `json:"market"`
	Price     string  `json:"price"`
	TWAP      *string `json:"twap"`
	Timestamp string  `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999", // timestamp without time zone, UTC 扱い
	"2006-01-02 15:04:05.999999999-07:00",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// decodeRow は通知ペイロードを Sample に変換します。
func decodeRow(payload string) (entity.Sample, error) {
	var row rowPayload
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return entity.Sample{}, err
	}
	ts, err := parseTimestamp(row.Timestamp)
	if err != nil {
		return entity.Sample{}, err
	}
	return toSample(row.Market, row.Price, row.TWAP, ts)
}

func kindForChannel(ch string) (entity.ChartKind, bool) {
	switch ch {
	case IndexChannel:
		return entity.ChartIndex, true
	case AMMChannel:
		return entity.ChartAMM, true
	}
	return "", false
}

func (f *PgFeed) dispatch(channel, payload string) {
	kind, ok := kindForChannel(channel)
	if !ok {
		return
	}
	s, err := decodeRow(payload)
	if err != nil {
		slog.Warn("dropping malformed live payload", "channel", channel, "error", err)
		return
	}

	f.mu.Lock()
	targets := make([]*pgSubscription, 0, len(f.subs[kind]))
	for _, sub := range f.subs[kind] {
		if kind == entity.ChartAMM && !strings.EqualFold(sub.market, s.Market) {
			continue
		}
		targets = append(targets, sub)
	}
	f.mu.Unlock()

	for _, sub := range targets {
		if sub.deliver(s) {
			metrics.LiveDeliveries.WithLabelValues(channel).Inc()
		}
	}
}

// Subscribe は kind と market の新しい行ごとに fn を呼びます。index では market を無視します。
// fn は受信ゴルーチンで同期的に呼ばれるため、ブロックせず、Unsubscribe も呼ばないでください。
// ctx が終わると自動的に解除されます。
func (f *PgFeed) Subscribe(ctx context.Context, kind entity.ChartKind, market string, fn func(entity.Sample)) (usecase.Subscription, error) {
	if kind != entity.ChartIndex && kind != entity.ChartAMM {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChartKind, kind)
	}
	if fn == nil {
		return nil, errors.New("live feed: nil callback")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &pgSubscription{id: uuid.New(), feed: f, kind: kind, market: market, fn: fn}

	f.mu.Lock()
	if f.subs[kind] == nil {
		f.subs[kind] = make(map[uuid.UUID]*pgSubscription)
	}
	f.subs[kind][sub.id] = sub
	f.mu.Unlock()
	metrics.LiveSubscribers.Inc()

	stop := context.AfterFunc(ctx, sub.Unsubscribe)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	slog.Debug("live subscription added", "id", sub.id, "kind", kind, "market", market)
	return sub, nil
}

// Subscribers は kind の購読数を返します。
func (f *PgFeed) Subscribers(kind entity.ChartKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[kind])
}

func (f *PgFeed) remove(sub *pgSubscription) {
	f.mu.Lock()
	delete(f.subs[sub.kind], sub.id)
	f.mu.Unlock()
}

type pgSubscription struct {
	id     uuid.UUID
	feed   *PgFeed
	kind   entity.ChartKind
	market string
	fn     func(entity.Sample)
	stop   func() bool

	mu     sync.Mutex // 配信中のコールバックと解除を直列化する
	closed bool
	once   sync.Once
}

func (s *pgSubscription) deliver(sample entity.Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.fn(sample)
	return true
}

// Unsubscribe は冪等です。戻った後にコールバックが呼ばれることはありません。
func (s *pgSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.feed.remove(s)
		metrics.LiveSubscribers.Dec()
		slog.Debug("live subscription removed", "id", s.id)
	})
}
