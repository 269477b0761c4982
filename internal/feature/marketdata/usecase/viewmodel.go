package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"futures_dashboard/internal/feature/marketdata/domain"
	"futures_dashboard/internal/feature/marketdata/domain/entity"
	"futures_dashboard/internal/platform/pricecell"
)

// Fetcher loads the full series for a selection.
type Fetcher interface {
	Fetch(ctx context.Context, sel entity.Selection) (entity.Series, error)
}

// Subscription is an active live feed registration.
// Unsubscribe is idempotent and no callback runs after it returns.
type Subscription interface {
	Unsubscribe()
}

// LiveFeed delivers newly inserted samples for one chart source.
type LiveFeed interface {
	Subscribe(ctx context.Context, kind entity.ChartKind, market string, fn func(entity.Sample)) (Subscription, error)
}

// ViewModel owns the state of one chart.
//
// Every selection change re-enters Loading and issues a full fetch; a result is
// applied only if no newer selection was made meanwhile. Live samples update the
// current price through a newest-timestamp-wins cell and never touch the series.
type ViewModel struct {
	kind    entity.ChartKind
	fetcher Fetcher
	live    LiveFeed

	ctx    context.Context
	cancel context.CancelFunc

	// selectMu serializes selection changes so subscription swaps happen in
	// order. Live callbacks never take it.
	selectMu sync.Mutex

	mu          sync.Mutex
	state       entity.ViewState
	gen         uint64
	fetchCancel context.CancelFunc
	sub         Subscription
	subMarket   string
	subscribed  bool
	liveID      uint64
	price       pricecell.Cell
	changes     chan struct{}
	closed      bool
	wg          sync.WaitGroup
}

// NewViewModel creates an idle view model for one chart kind.
// live may be nil, in which case the current price only changes on refetch.
func NewViewModel(ctx context.Context, kind entity.ChartKind, fetcher Fetcher, live LiveFeed) *ViewModel {
	ctx, cancel := context.WithCancel(ctx)
	return &ViewModel{
		kind:    kind,
		fetcher: fetcher,
		live:    live,
		ctx:     ctx,
		cancel:  cancel,
		state:   entity.ViewState{Status: entity.StatusIdle, Selection: entity.Selection{Kind: kind}},
		changes: make(chan struct{}, 1),
	}
}

// Changes signals that the state may have changed. Signals coalesce; read the
// state with Snapshot. The channel is closed by Close.
func (vm *ViewModel) Changes() <-chan struct{} { return vm.changes }

// Snapshot returns the current state.
func (vm *ViewModel) Snapshot() entity.ViewState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// RangeOptions lists the ranges offered by the chart kind.
func (vm *ViewModel) RangeOptions() []entity.Range { return vm.kind.RangeOptions() }

// Select switches to market and range r and starts a fetch. An empty r selects
// the kind's default range. The state is left untouched on an unknown range.
func (vm *ViewModel) Select(market string, r entity.Range) error {
	spec, err := vm.kind.Resolve(r)
	if err != nil {
		return err
	}
	sel := entity.Selection{Kind: vm.kind, Market: market, Range: spec.Token}

	vm.selectMu.Lock()
	defer vm.selectMu.Unlock()

	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return domain.ErrClosed
	}
	vm.gen++
	gen := vm.gen
	if vm.fetchCancel != nil {
		vm.fetchCancel()
	}
	fetchCtx, fetchCancel := context.WithCancel(vm.ctx)
	vm.fetchCancel = fetchCancel

	var stale Subscription
	resubscribe := !vm.subscribed || vm.subMarket != market
	if resubscribe {
		stale = vm.sub
		vm.sub = nil
		vm.subscribed = false
		vm.liveID++
		vm.price.Reset()
	}
	liveID := vm.liveID
	vm.state = entity.ViewState{
		Selection: sel,
		Spec:      spec,
		Status:    entity.StatusLoading,
		Seq:       gen,
	}
	vm.notifyLocked()
	vm.wg.Add(1)
	vm.mu.Unlock()

	// Unsubscribe may wait for an in-flight callback, which takes vm.mu.
	if stale != nil {
		stale.Unsubscribe()
	}
	if resubscribe {
		vm.subscribe(market, liveID)
	}

	go vm.fetch(fetchCtx, gen, sel, spec)
	return nil
}

// SetRange keeps the current market and switches range.
func (vm *ViewModel) SetRange(r entity.Range) error {
	return vm.Select(vm.Snapshot().Selection.Market, r)
}

// Refresh refetches the current selection.
func (vm *ViewModel) Refresh() error {
	sel := vm.Snapshot().Selection
	if sel.Range == "" {
		return nil
	}
	return vm.Select(sel.Market, sel.Range)
}

func (vm *ViewModel) subscribe(market string, id uint64) {
	if vm.live == nil {
		vm.mu.Lock()
		vm.subMarket = market
		vm.subscribed = true
		vm.mu.Unlock()
		return
	}

	sub, err := vm.live.Subscribe(vm.ctx, vm.kind, market, func(s entity.Sample) {
		vm.onLive(id, s)
	})
	if err != nil {
		slog.Warn("live subscription failed, price updates on refetch only", "kind", vm.kind, "market", market, "error", err)
		vm.mu.Lock()
		vm.subMarket = market
		vm.subscribed = true
		vm.mu.Unlock()
		return
	}

	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	vm.sub = sub
	vm.subMarket = market
	vm.subscribed = true
	vm.mu.Unlock()
}

func (vm *ViewModel) onLive(id uint64, s entity.Sample) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed || id != vm.liveID {
		return
	}
	if !vm.price.Offer(pricecell.Quote{Price: s.Price, At: s.Time}) {
		return
	}
	if vm.state.Status != entity.StatusReady {
		return
	}
	vm.state.CurrentPrice = decimal.NewNullDecimal(s.Price)
	vm.state.PriceAt = s.Time
	vm.notifyLocked()
}

func (vm *ViewModel) fetch(ctx context.Context, gen uint64, sel entity.Selection, spec entity.RangeSpec) {
	defer vm.wg.Done()

	series, err := vm.fetcher.Fetch(ctx, sel)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed || gen != vm.gen {
		return
	}
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}
	next := BuildViewState(sel, spec, series, err, &vm.price)
	next.Seq = gen
	vm.state = next
	vm.notifyLocked()
}

// notifyLocked must be called with vm.mu held.
func (vm *ViewModel) notifyLocked() {
	if vm.closed {
		return
	}
	select {
	case vm.changes <- struct{}{}:
	default:
	}
}

// Await blocks until the state satisfies done or ctx ends. It consumes change
// signals, so only one goroutine should read Changes at a time.
func (vm *ViewModel) Await(ctx context.Context, done func(entity.ViewState) bool) (entity.ViewState, error) {
	for {
		if st := vm.Snapshot(); done(st) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return vm.Snapshot(), ctx.Err()
		case _, ok := <-vm.changes:
			if !ok {
				return vm.Snapshot(), domain.ErrClosed
			}
		}
	}
}

// Close tears down the live subscription and makes in-flight fetches no-ops.
// It is safe to call more than once.
func (vm *ViewModel) Close() {
	vm.selectMu.Lock()
	defer vm.selectMu.Unlock()

	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.closed = true
	sub := vm.sub
	vm.sub = nil
	vm.cancel()
	close(vm.changes)
	vm.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	vm.wg.Wait()
}

// BuildViewState reduces a fetch outcome to a terminal state.
//
// Failures yield Failed with no price, fewer than two samples yield Empty, and
// otherwise the series is charted and the last sample is offered to cell; the
// displayed price is whatever the cell holds afterwards.
func BuildViewState(sel entity.Selection, spec entity.RangeSpec, series entity.Series, err error, cell *pricecell.Cell) entity.ViewState {
	st := entity.ViewState{Selection: sel, Spec: spec}
	if err != nil {
		st.Status = entity.StatusFailed
		st.Err = err.Error()
		return st
	}
	if !series.EnoughData() {
		st.Status = entity.StatusEmpty
		return st
	}

	samples := series.Samples
	change, err := ComputeChange(samples)
	if err != nil {
		st.Status = entity.StatusEmpty
		return st
	}
	st.Change = &change
	if sel.Kind.Candles() {
		st.Candles = AggregateCandles(samples, spec.BucketWidth)
	} else {
		st.Points = samples
	}

	last := samples[len(samples)-1]
	if cell == nil {
		cell = &pricecell.Cell{}
	}
	cell.Offer(pricecell.Quote{Price: last.Price, At: last.Time})
	q, _ := cell.Latest()
	st.CurrentPrice = decimal.NewNullDecimal(q.Price)
	st.PriceAt = q.At
	st.Status = entity.StatusReady
	return st
}
