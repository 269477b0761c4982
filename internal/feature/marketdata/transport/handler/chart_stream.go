package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"futures_dashboard/internal/api"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/feature/marketdata/transport/http/dto"
	"futures_dashboard/internal/feature/marketdata/usecase"
	"futures_dashboard/internal/platform/metrics"
)

const (
	// streamPingPeriod は WebSocket の ping 間隔です。
	streamPingPeriod = 30 * time.Second
	// streamWriteTimeout は1回の書き込みの上限です。
	streamWriteTimeout = 5 * time.Second
	// streamReadLimit はクライアントから受け付けるメッセージの上限です。
	streamReadLimit = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream は1接続につき1つの ViewModel を持ち、状態が変わるたびに ChartResponse を送ります。
// クライアントは {"range":"4h"} や {"market":"...","range":"1h"} を送って選択を変えられます。
//
// エンドポイント例:
// GET /ws/charts/amm/H100-GPU-PERP?range=1h
func (h *ChartHandler) Stream(c *gin.Context) {
	sel, status, err := h.resolve(c)
	if err != nil {
		c.JSON(status, api.ErrorResponse{Error: err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote_addr", c.ClientIP())
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.ChartStreams.Inc()
	defer metrics.ChartStreams.Dec()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	vm := h.uc.NewViewModel(ctx, sel.Kind)
	defer vm.Close()

	if err := vm.Select(sel.Market, sel.Range); err != nil {
		_ = writeJSON(conn, api.ErrorResponse{Error: err.Error()})
		return
	}
	slog.Info("chart stream opened", "kind", sel.Kind, "market", sel.Market, "range", sel.Range, "remote_addr", c.ClientIP())

	// 書き込みはこのゴルーチンだけが行い、読み取り側のエラーは errs 経由で返す
	errs := make(chan string, 4)
	go h.readSelections(ctx, cancel, conn, vm, sel.Kind, errs)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	var last frameKey
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-vm.Changes():
			if !ok {
				return
			}
			st := vm.Snapshot()
			// 1回の遷移で通知が複数届くことがあるため、直前に送った状態と同じなら送らない
			key := frameKeyOf(st)
			if key.same(last) {
				continue
			}
			last = key
			if err := writeJSON(conn, dto.NewChartResponse(st)); err != nil {
				slog.Info("chart stream closed", "error", err)
				return
			}
		case msg := <-errs:
			if err := writeJSON(conn, api.ErrorResponse{Error: msg}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// frameKey は送信済みフレームを識別します。
type frameKey struct {
	seq     uint64
	status  entity.Status
	priceAt time.Time
	sent    bool
}

func frameKeyOf(st entity.ViewState) frameKey {
	return frameKey{seq: st.Seq, status: st.Status, priceAt: st.PriceAt, sent: true}
}

func (k frameKey) same(o frameKey) bool {
	return k.sent && o.sent && k.seq == o.seq && k.status == o.status && k.priceAt.Equal(o.priceAt)
}

func (h *ChartHandler) readSelections(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, vm *usecase.ViewModel, kind entity.ChartKind, errs chan<- string) {
	defer cancel()

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(2 * streamPingPeriod))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * streamPingPeriod))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("chart stream read ended", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * streamPingPeriod))

		var req dto.RangeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			sendErr(errs, "invalid message")
			continue
		}
		market := vm.Snapshot().Selection.Market
		if kind == entity.ChartAMM && req.Market != "" {
			m, err := h.markets.Market(req.Market)
			if err != nil {
				sendErr(errs, err.Error())
				continue
			}
			market = m.Symbol
		}
		if err := vm.Select(market, entity.Range(req.Range)); err != nil {
			sendErr(errs, err.Error())
		}
	}
}

func sendErr(errs chan<- string, msg string) {
	select {
	case errs <- msg:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
