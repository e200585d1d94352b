package og

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toucan/internal/bus"
	"toucan/internal/clock"
	"toucan/internal/schema"
)

var timeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recorder struct {
	mu     sync.Mutex
	events []schema.AccountStreamEvent
}

func (r *recorder) emit(e schema.AccountStreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []schema.AccountEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.AccountEventKind, 0, len(r.events))
	for _, e := range r.events {
		if e.Item == nil {
			out = append(out, schema.AccountEventUnknown)
			continue
		}
		out = append(out, e.Item.Kind)
	}
	return out
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func newMock(rec *recorder) *MockExchange {
	return NewMockExchange(MockConfig{
		FeesPercent: dec("10"),
		Balances: []schema.AssetBalance{
			{Asset: "base", Balance: schema.NewBalance(dec("1"), dec("1"))},
			{Asset: "quote", Balance: schema.NewBalance(dec("40000"), dec("40000"))},
		},
	}, []schema.Instrument{
		{Key: "inst0", Exchange: schema.ExchangeMock, Base: "base", Quote: "quote"},
	}, clock.NewHistorical(timeStart), rec.emit).WithIDs(sequentialIDs())
}

func openReq(cid string, side schema.Side, kind schema.OrderKind, price, qty string) schema.OrderRequestOpen {
	tif := schema.ImmediateOrCancel()
	if kind == schema.OrderKindLimit {
		tif = schema.GoodUntilCancelled(false)
	}
	return schema.OrderRequestOpen{
		Key: schema.OrderKey{Exchange: schema.ExchangeMock, Instrument: "inst0", Strategy: "test", CID: schema.ClientOrderID(cid)},
		State: schema.RequestOpen{
			Side:        side,
			Kind:        kind,
			TimeInForce: tif,
			Price:       dec(price),
			Quantity:    dec(qty),
		},
	}
}

func TestMockMarketFill(t *testing.T) {
	rec := &recorder{}
	m := newMock(rec)

	m.Handle(OpenRequest(openReq("a", schema.SideBuy, schema.OrderKindMarket, "10000", "1")))

	require.Equal(t, []schema.AccountEventKind{
		schema.AccountEventTrade,
		schema.AccountEventBalanceSnapshot,
		schema.AccountEventBalanceSnapshot,
		schema.AccountEventOrderSnapshot,
	}, rec.kinds())

	order := rec.events[3].Item.Order
	assert.Equal(t, schema.OrderStatusOpen, order.State.Status)
	assert.True(t, order.State.FilledQuantity.Equal(dec("1")))

	trade := rec.events[0].Item.Trade
	assert.Equal(t, schema.OrderID("id1"), trade.OrderID)
	assert.True(t, trade.Fees.Fees.Equal(dec("1000")))

	assert.True(t, m.Balance("quote").Total.Equal(dec("29000")))
	assert.True(t, m.Balance("base").Total.Equal(dec("2")))
}

func TestMockRejects(t *testing.T) {
	testCases := []struct {
		desc string
		req  schema.OrderRequestOpen
	}{
		{"insufficient quote", openReq("a", schema.SideBuy, schema.OrderKindMarket, "40000", "1")},
		{"insufficient base", openReq("a", schema.SideSell, schema.OrderKindMarket, "1", "2")},
		{"zero quantity", openReq("a", schema.SideBuy, schema.OrderKindMarket, "1", "0")},
		{"unknown instrument", func() schema.OrderRequestOpen {
			r := openReq("a", schema.SideBuy, schema.OrderKindMarket, "1", "1")
			r.Key.Instrument = "missing"
			return r
		}()},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			rec := &recorder{}
			newMock(rec).Handle(OpenRequest(tc.req))
			require.Len(t, rec.events, 1)
			order := rec.events[0].Item.Order
			assert.Equal(t, schema.OrderStatusRejected, order.State.Status)
			assert.NotEmpty(t, order.State.Reason)
		})
	}
}

func TestMockLimitRestCancelAndMatch(t *testing.T) {
	rec := &recorder{}
	m := newMock(rec)

	m.Handle(OpenRequest(openReq("a", schema.SideSell, schema.OrderKindLimit, "20000", "1")))
	m.Handle(OpenRequest(openReq("b", schema.SideBuy, schema.OrderKindLimit, "5000", "1")))
	require.Len(t, rec.events, 2)
	assert.True(t, rec.events[0].Item.Order.State.FilledQuantity.IsZero())

	m.Handle(CancelRequest(schema.OrderRequestCancel{Key: rec.events[1].Item.Order.Key}))
	require.Len(t, rec.events, 3)
	assert.True(t, rec.events[2].Item.Cancelled.Succeeded())

	m.Handle(CancelRequest(schema.OrderRequestCancel{Key: rec.events[1].Item.Order.Key}))
	assert.Equal(t, schema.CancelErrorOrderNotFound, rec.events[3].Item.Cancelled.Error)

	m.MatchMarket(schema.MarketEvent{
		Exchange:   schema.ExchangeMock,
		Instrument: "inst0",
		Kind:       schema.MarketDataTrade,
		Trade:      &schema.PublicTrade{Price: dec("20001"), Amount: dec("1"), Side: schema.SideBuy},
	})
	require.Len(t, rec.events, 8)
	assert.Equal(t, schema.AccountEventTrade, rec.events[4].Item.Kind)
	assert.True(t, rec.events[4].Item.Trade.Price.Equal(dec("20000")))
	assert.Equal(t, schema.AccountEventOrderSnapshot, rec.events[7].Item.Kind)
	assert.True(t, m.Balance("base").Total.IsZero())
}

func TestMockDisconnect(t *testing.T) {
	rec := &recorder{}
	m := newMock(rec)

	m.Disconnect()
	m.Handle(OpenRequest(openReq("a", schema.SideBuy, schema.OrderKindMarket, "1", "1")))
	m.Reconnect()

	require.Equal(t, []schema.AccountEventKind{
		schema.AccountEventUnknown,
		schema.AccountEventOrderSnapshot,
		schema.AccountEventSnapshot,
	}, rec.kinds())
	assert.True(t, rec.events[0].Reconnecting)
	assert.Equal(t, schema.OrderStatusRejected, rec.events[1].Item.Order.State.Status)
	assert.Len(t, rec.events[2].Item.Snapshot.Balances, 2)
}

func TestMockRunShutdown(t *testing.T) {
	rec := &recorder{}
	m := newMock(rec)
	tx := m.Tx()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(context.Background())
	}()

	require.NoError(t, tx.Send(OpenRequest(openReq("a", schema.SideBuy, schema.OrderKindMarket, "100", "1"))))
	require.NoError(t, tx.Send(ShutdownRequest()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mock exchange did not stop")
	}
	assert.Len(t, rec.kinds(), 4)
	assert.ErrorIs(t, tx.Send(OpenRequest(openReq("b", schema.SideBuy, schema.OrderKindMarket, "100", "1"))), ErrTransportClosed)
}

func TestMockDrain(t *testing.T) {
	rec := &recorder{}
	m := newMock(rec)
	tx := m.Tx()

	assert.Zero(t, m.Drain())
	require.NoError(t, tx.Send(OpenRequest(openReq("a", schema.SideBuy, schema.OrderKindLimit, "90", "1"))))
	require.NoError(t, tx.Send(CancelRequest(schema.OrderRequestCancel{Key: openReq("a", schema.SideBuy, schema.OrderKindLimit, "90", "1").Key})))
	assert.Equal(t, 2, m.Drain())
	assert.Equal(t, []schema.AccountEventKind{schema.AccountEventOrderSnapshot, schema.AccountEventOrderCancelled}, rec.kinds())

	require.NoError(t, tx.Send(ShutdownRequest()))
	assert.Equal(t, 1, m.Drain())
	assert.ErrorIs(t, tx.Send(ShutdownRequest()), ErrTransportClosed)
}

func TestTxMap(t *testing.T) {
	q := bus.NewQueue[Request](1)
	txs := NewTxMap().Register(schema.ExchangeMock, NewQueueTx(q))

	_, err := txs.Find("b3")
	assert.ErrorIs(t, err, ErrNoRoute)

	tx, err := txs.Find(schema.ExchangeMock)
	require.NoError(t, err)
	require.NoError(t, tx.Send(ShutdownRequest()))
	assert.ErrorIs(t, tx.Send(ShutdownRequest()), ErrTransportFull)
	assert.ErrorIs(t, txs.Broadcast(ShutdownRequest()), ErrTransportFull)

	q.Close()
	assert.ErrorIs(t, tx.Send(ShutdownRequest()), ErrTransportClosed)
	assert.Equal(t, []schema.ExchangeID{schema.ExchangeMock}, txs.Exchanges())
}
