package og

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"toucan/internal/bus"
	"toucan/internal/clock"
	"toucan/internal/schema"
)

var hundred = decimal.NewFromInt(100)

// MockConfig controls the simulated exchange.
type MockConfig struct {
	Exchange    schema.ExchangeID     `json:"exchange"`
	FeesPercent decimal.Decimal       `json:"feesPercent"`
	Capacity    int                   `json:"capacity"`
	Balances    []schema.AssetBalance `json:"balances"`
}

// MockExchange is an in-process execution client. Market orders fill immediately at the
// request price; limit orders rest until a crossing public trade or a cancel.
type MockExchange struct {
	cfg         MockConfig
	clock       clock.Clock
	requests    *bus.Queue[Request]
	emit        func(schema.AccountStreamEvent)
	newID       func() string
	instruments map[schema.InstrumentKey]schema.Instrument

	mu        sync.Mutex
	connected bool
	balances  map[schema.AssetKey]schema.Balance
	resting   map[schema.ClientOrderID]*schema.Order
}

// NewMockExchange creates a mock exchange emitting account events through emit.
func NewMockExchange(cfg MockConfig, instruments []schema.Instrument, clk clock.Clock, emit func(schema.AccountStreamEvent)) *MockExchange {
	if cfg.Exchange == "" {
		cfg.Exchange = schema.ExchangeMock
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	if clk == nil {
		clk = clock.Live{}
	}
	m := &MockExchange{
		cfg:         cfg,
		clock:       clk,
		requests:    bus.NewQueue[Request](cfg.Capacity),
		emit:        emit,
		newID:       uuid.NewString,
		instruments: make(map[schema.InstrumentKey]schema.Instrument, len(instruments)),
		connected:   true,
		balances:    make(map[schema.AssetKey]schema.Balance, len(cfg.Balances)),
		resting:     make(map[schema.ClientOrderID]*schema.Order),
	}
	for _, inst := range instruments {
		if inst.Exchange == cfg.Exchange {
			m.instruments[inst.Key] = inst
		}
	}
	for _, b := range cfg.Balances {
		m.balances[b.Asset] = b.Balance
	}
	return m
}

// WithIDs replaces the order and trade id generator.
func (m *MockExchange) WithIDs(newID func() string) *MockExchange {
	m.newID = newID
	return m
}

// Exchange returns the simulated exchange id.
func (m *MockExchange) Exchange() schema.ExchangeID {
	return m.cfg.Exchange
}

// Tx returns the request transport of this exchange.
func (m *MockExchange) Tx() *QueueTx {
	return NewQueueTx(m.requests)
}

// Run consumes requests until a shutdown request, ctx is done or the transport is closed.
func (m *MockExchange) Run(ctx context.Context) {
	for {
		req, err := m.requests.Recv(ctx)
		if err != nil {
			return
		}
		if req.Kind == RequestShutdown {
			logs.Infof("mock exchange %s shutdown", m.cfg.Exchange)
			m.requests.Close()
			return
		}
		m.Handle(req)
	}
}

// Drain handles every queued request without blocking and returns how many were handled.
// A shutdown request closes the transport.
func (m *MockExchange) Drain() int {
	handled := 0
	for {
		req, ok := m.requests.TryRecv()
		if !ok {
			return handled
		}
		handled++
		if req.Kind == RequestShutdown {
			m.requests.Close()
			return handled
		}
		m.Handle(req)
	}
}

// Handle processes one request synchronously.
func (m *MockExchange) Handle(req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.Kind {
	case RequestOpen:
		if req.Open != nil {
			m.open(*req.Open)
		}
	case RequestCancel:
		if req.Cancel != nil {
			m.cancel(*req.Cancel)
		}
	}
}

// Snapshot emits the full account snapshot.
func (m *MockExchange) Snapshot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.send(schema.AccountEvent{
		Exchange: m.cfg.Exchange,
		Kind:     schema.AccountEventSnapshot,
		Snapshot: m.snapshot(),
	})
}

// Disconnect emits a reconnecting event and rejects opens until Reconnect.
func (m *MockExchange) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	if m.emit != nil {
		m.emit(schema.AccountReconnecting(m.cfg.Exchange))
	}
}

// Reconnect restores the link and emits the account snapshot.
func (m *MockExchange) Reconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	m.send(schema.AccountEvent{
		Exchange: m.cfg.Exchange,
		Kind:     schema.AccountEventSnapshot,
		Snapshot: m.snapshot(),
	})
}

// Balance returns the simulated balance of asset.
func (m *MockExchange) Balance(asset schema.AssetKey) schema.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[asset]
}

// MatchMarket fills resting limit orders crossed by a public trade.
func (m *MockExchange) MatchMarket(event schema.MarketEvent) {
	if event.Kind != schema.MarketDataTrade || event.Trade == nil || event.Exchange != m.cfg.Exchange {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	price := event.Trade.Price
	cids := make([]schema.ClientOrderID, 0, len(m.resting))
	for cid, order := range m.resting {
		if order.Key.Instrument != event.Instrument {
			continue
		}
		crossed := (order.Side == schema.SideBuy && price.LessThanOrEqual(order.Price)) ||
			(order.Side == schema.SideSell && price.GreaterThanOrEqual(order.Price))
		if crossed {
			cids = append(cids, cid)
		}
	}
	sort.Slice(cids, func(i, j int) bool { return cids[i] < cids[j] })

	for _, cid := range cids {
		order := m.resting[cid]
		delete(m.resting, cid)
		m.fill(*order, order.State.ID, order.Price)
	}
}

func (m *MockExchange) open(req schema.OrderRequestOpen) {
	order := schema.OrderFromRequest(req)
	now := m.clock.Time()

	reject := func(reason string) {
		order.State = schema.OrderState{Status: schema.OrderStatusRejected, TimeExchange: now, Reason: reason}
		m.send(schema.OrderSnapshotEvent(m.cfg.Exchange, order))
	}

	if !m.connected {
		reject("exchange disconnected")
		return
	}
	if req.Key.Exchange != m.cfg.Exchange {
		reject("wrong exchange")
		return
	}
	inst, ok := m.instruments[req.Key.Instrument]
	if !ok {
		reject("unknown instrument")
		return
	}
	if !req.State.Quantity.IsPositive() {
		reject("non-positive quantity")
		return
	}
	if !m.affordable(inst, req.State) {
		reject("insufficient balance")
		return
	}

	id := schema.OrderID(m.newID())
	switch req.State.Kind {
	case schema.OrderKindMarket:
		m.fill(order, id, req.State.Price)
	case schema.OrderKindLimit:
		order.State = schema.OpenState(id, now, decimal.Zero)
		m.resting[req.Key.CID] = &order
		m.send(schema.OrderSnapshotEvent(m.cfg.Exchange, order))
	default:
		reject("unsupported order kind")
	}
}

func (m *MockExchange) cancel(req schema.OrderRequestCancel) {
	now := m.clock.Time()
	order, ok := m.resting[req.Key.CID]
	if !ok {
		m.send(schema.OrderCancelledEvent(m.cfg.Exchange, schema.OrderResponseCancel{
			Key:          req.Key,
			ID:           req.ID,
			TimeExchange: now,
			Error:        schema.CancelErrorOrderNotFound,
			Message:      "order not found",
		}))
		return
	}
	delete(m.resting, req.Key.CID)
	m.send(schema.OrderCancelledEvent(m.cfg.Exchange, schema.OrderResponseCancel{
		Key:          order.Key,
		ID:           order.State.ID,
		TimeExchange: now,
	}))
}

// fill emits the trade, both balance snapshots and the filled order snapshot of a full fill.
func (m *MockExchange) fill(order schema.Order, id schema.OrderID, price decimal.Decimal) {
	now := m.clock.Time()
	inst := m.instruments[order.Key.Instrument]
	value := price.Mul(order.Quantity)
	fees := value.Mul(m.cfg.FeesPercent).Div(hundred)

	m.send(schema.TradeEvent(m.cfg.Exchange, schema.Trade{
		ID:           schema.TradeID(m.newID()),
		OrderID:      id,
		Instrument:   order.Key.Instrument,
		Strategy:     order.Key.Strategy,
		TimeExchange: now,
		Side:         order.Side,
		Price:        price,
		Quantity:     order.Quantity,
		Fees:         schema.QuoteFees(fees),
	}))

	base, quote := m.balances[inst.Base], m.balances[inst.Quote]
	switch order.Side {
	case schema.SideBuy:
		cost := value.Add(fees)
		quote = schema.NewBalance(quote.Total.Sub(cost), quote.Free.Sub(cost))
		base = schema.NewBalance(base.Total.Add(order.Quantity), base.Free.Add(order.Quantity))
	case schema.SideSell:
		proceeds := value.Sub(fees)
		quote = schema.NewBalance(quote.Total.Add(proceeds), quote.Free.Add(proceeds))
		base = schema.NewBalance(base.Total.Sub(order.Quantity), base.Free.Sub(order.Quantity))
	}
	m.balances[inst.Quote], m.balances[inst.Base] = quote, base

	m.send(schema.BalanceSnapshotEvent(m.cfg.Exchange, schema.AssetBalance{Asset: inst.Quote, Balance: quote, TimeExchange: now}))
	m.send(schema.BalanceSnapshotEvent(m.cfg.Exchange, schema.AssetBalance{Asset: inst.Base, Balance: base, TimeExchange: now}))

	// the filled snapshot goes last, the trade must reach the position first
	order.State = schema.OpenState(id, now, order.Quantity)
	m.send(schema.OrderSnapshotEvent(m.cfg.Exchange, order))
}

func (m *MockExchange) affordable(inst schema.Instrument, req schema.RequestOpen) bool {
	switch req.Side {
	case schema.SideBuy:
		value := req.Price.Mul(req.Quantity)
		cost := value.Add(value.Mul(m.cfg.FeesPercent).Div(hundred))
		return m.balances[inst.Quote].Free.GreaterThanOrEqual(cost)
	case schema.SideSell:
		return m.balances[inst.Base].Free.GreaterThanOrEqual(req.Quantity)
	default:
		return false
	}
}

func (m *MockExchange) snapshot() *schema.AccountSnapshot {
	now := m.clock.Time()
	snap := &schema.AccountSnapshot{Exchange: m.cfg.Exchange}

	assets := make([]schema.AssetKey, 0, len(m.balances))
	for asset := range m.balances {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	for _, asset := range assets {
		snap.Balances = append(snap.Balances, schema.AssetBalance{Asset: asset, Balance: m.balances[asset], TimeExchange: now})
	}

	byInstrument := make(map[schema.InstrumentKey][]schema.Order)
	for _, order := range m.resting {
		byInstrument[order.Key.Instrument] = append(byInstrument[order.Key.Instrument], *order)
	}
	keys := make([]schema.InstrumentKey, 0, len(m.instruments))
	for key := range m.instruments {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		orders := byInstrument[key]
		sort.Slice(orders, func(i, j int) bool { return orders[i].Key.CID < orders[j].Key.CID })
		snap.Instruments = append(snap.Instruments, schema.InstrumentAccountSnapshot{Instrument: key, Orders: orders})
	}
	return snap
}

func (m *MockExchange) send(event schema.AccountEvent) {
	if m.emit == nil {
		return
	}
	m.emit(schema.AccountItem(event))
}
