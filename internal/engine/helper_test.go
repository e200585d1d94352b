package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"toucan/internal/bus"
	"toucan/internal/clock"
	"toucan/internal/og"
	"toucan/internal/risk"
	"toucan/internal/schema"
	"toucan/internal/state"
	"toucan/internal/strategy"
)

const strategyID schema.StrategyID = "TestBuyAndHoldStrategy"

var (
	timeStart      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	riskFreeReturn = decimal.RequireFromString("0.05")
	feesPercent    = decimal.RequireFromString("0.1")
)

func day(n int) time.Time {
	return timeStart.AddDate(0, 0, n)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func instKey(i int) schema.InstrumentKey {
	return schema.InstrumentKey(fmt.Sprintf("inst%d", i))
}

func cid(i int) schema.ClientOrderID {
	return schema.ClientOrderID(instKey(i))
}

func tradeID(i int) schema.TradeID {
	return schema.TradeID(fmt.Sprintf("trade_inst%d", i))
}

func orderID(i int) schema.OrderID {
	return schema.OrderID(fmt.Sprintf("order_inst%d", i))
}

func orderKey(i int) schema.OrderKey {
	return schema.OrderKey{Exchange: schema.ExchangeMock, Instrument: instKey(i), Strategy: strategyID, CID: cid(i)}
}

func testInstruments() []schema.Instrument {
	return []schema.Instrument{
		{Key: "inst0", Symbol: "BASE", Market: "spot", Exchange: schema.ExchangeMock, Underlying: "base_quote", NameExchange: "BASEQUOTE", Base: "base", Quote: "quote"},
		{Key: "inst1", Symbol: "ALT", Market: "spot", Exchange: schema.ExchangeMock, Underlying: "alt_base", NameExchange: "ALTBASE", Base: "alt", Quote: "base"},
	}
}

type harness struct {
	engine   *Engine
	requests *bus.Queue[og.Request]
}

func newHarness(trading state.TradingState, rm risk.RiskManager) *harness {
	s := state.NewBuilder(testInstruments(), nil, nil).
		TimeEngineStart(timeStart).
		TradingState(trading).
		Balance("base", schema.NewBalance(dec("1"), dec("1"))).
		Balance("alt", schema.NewBalance(dec("10"), dec("10"))).
		Balance("quote", schema.NewBalance(dec("40000"), dec("40000"))).
		Build()

	requests := bus.NewQueue[og.Request](64)
	txs := og.NewTxMap().Register(schema.ExchangeMock, og.NewQueueTx(requests))
	strat := strategy.NewBuyAndHold(strategyID, dec("1"), func(key schema.InstrumentKey) schema.ClientOrderID {
		return schema.ClientOrderID(key)
	})

	return &harness{
		engine:   New(clock.NewHistorical(timeStart), s, txs, strat, rm),
		requests: requests,
	}
}

func (h *harness) requireSentOpen(t *testing.T, want schema.OrderRequestOpen) {
	t.Helper()
	got, ok := h.requests.TryRecv()
	require.True(t, ok, "no execution request sent")
	require.Equal(t, og.RequestOpen, got.Kind)
	require.NotNil(t, got.Open)
	requireOpen(t, want, *got.Open)
}

func (h *harness) requireNothingSent(t *testing.T) {
	t.Helper()
	got, ok := h.requests.TryRecv()
	require.False(t, ok, "unexpected execution request: %+v", got)
}

func accountItem(event schema.AccountEvent) Event {
	event.Broker = "mock-broker"
	event.Account = "mock-account"
	return AccountEvent(schema.AccountItem(event))
}

func accountSnapshot(s *state.EngineState) Event {
	snap := &schema.AccountSnapshot{Exchange: schema.ExchangeMock}
	for _, asset := range s.Assets.All() {
		if asset.Balance == nil {
			continue
		}
		snap.Balances = append(snap.Balances, schema.AssetBalance{
			Asset:        asset.Asset,
			Balance:      asset.Balance.Value,
			TimeExchange: asset.Balance.Time,
		})
	}
	return accountItem(schema.AccountEvent{Exchange: schema.ExchangeMock, Kind: schema.AccountEventSnapshot, Snapshot: snap})
}

func marketTrade(days, inst int, price string) Event {
	return MarketEvent(schema.MarketItem(schema.MarketEvent{
		TimeExchange: day(days),
		TimeReceived: day(days),
		Exchange:     schema.ExchangeMock,
		Instrument:   instKey(inst),
		Kind:         schema.MarketDataTrade,
		Trade:        &schema.PublicTrade{ID: fmt.Sprint(days), Price: dec(price), Amount: dec("1"), Side: schema.SideBuy},
	}))
}

func orderResponse(inst, days int, side schema.Side, price, quantity, filled string) Event {
	return accountItem(schema.OrderSnapshotEvent(schema.ExchangeMock, schema.Order{
		Key:         orderKey(inst),
		Side:        side,
		Price:       dec(price),
		Quantity:    dec(quantity),
		Kind:        schema.OrderKindMarket,
		TimeInForce: schema.GoodUntilCancelled(true),
		State:       schema.OpenState(orderID(inst), day(days), dec(filled)),
	}))
}

func balanceUpdate(asset schema.AssetKey, days int, total, free string) Event {
	return accountItem(schema.BalanceSnapshotEvent(schema.ExchangeMock, schema.AssetBalance{
		Asset:        asset,
		Balance:      schema.NewBalance(dec(total), dec(free)),
		TimeExchange: day(days),
	}))
}

func accountTrade(inst, days int, side schema.Side, price, quantity string) Event {
	p, q := dec(price), dec(quantity)
	return accountItem(schema.TradeEvent(schema.ExchangeMock, schema.Trade{
		ID:           tradeID(inst),
		OrderID:      orderID(inst),
		Instrument:   instKey(inst),
		Strategy:     strategyID,
		TimeExchange: day(days),
		Side:         side,
		Price:        p,
		Quantity:     q,
		Fees:         schema.QuoteFees(p.Mul(q).Mul(feesPercent)),
	}))
}

func closePosition(inst int) Event {
	return CommandEvent(ClosePositions(state.InstrumentsFilter(instKey(inst))))
}

func marketBuy(inst int, price string) schema.OrderRequestOpen {
	return schema.OrderRequestOpen{
		Key: orderKey(inst),
		State: schema.RequestOpen{
			Side:        schema.SideBuy,
			Kind:        schema.OrderKindMarket,
			TimeInForce: schema.ImmediateOrCancel(),
			Price:       dec(price),
			Quantity:    dec("1"),
		},
	}
}

func requireOpen(t *testing.T, want, got schema.OrderRequestOpen) {
	t.Helper()
	require.Equal(t, want.Key, got.Key)
	require.Equal(t, want.State.Side, got.State.Side)
	require.Equal(t, want.State.Kind, got.State.Kind)
	require.Equal(t, want.State.TimeInForce, got.State.TimeInForce)
	require.Truef(t, want.State.Price.Equal(got.State.Price), "price: %s", got.State.Price)
	require.Truef(t, want.State.Quantity.Equal(got.State.Quantity), "quantity: %s", got.State.Quantity)
}

func requireOpens(t *testing.T, want, got []schema.OrderRequestOpen) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		requireOpen(t, want[i], got[i])
	}
}

func requireBalance(t *testing.T, s *state.EngineState, asset schema.AssetKey, total, free string, days int) {
	t.Helper()
	a, ok := s.Assets.Asset(asset)
	require.True(t, ok)
	require.NotNil(t, a.Balance)
	require.Truef(t, a.Balance.Value.Equal(schema.NewBalance(dec(total), dec(free))), "balance %s: %+v", asset, a.Balance.Value)
	require.Truef(t, a.Balance.Time.Equal(day(days)), "balance %s time: %s", asset, a.Balance.Time)
}

func requireExited(t *testing.T, want, got schema.PositionExited) {
	t.Helper()
	require.Equal(t, want.Instrument, got.Instrument)
	require.Equal(t, want.Side, got.Side)
	require.Truef(t, want.PriceEntryAverage.Equal(got.PriceEntryAverage), "entry: %s", got.PriceEntryAverage)
	require.Truef(t, want.QuantityAbsMax.Equal(got.QuantityAbsMax), "qty max: %s", got.QuantityAbsMax)
	require.Truef(t, want.PnlRealised.Equal(got.PnlRealised), "pnl: %s", got.PnlRealised)
	require.Equal(t, want.FeesEnter.Asset, got.FeesEnter.Asset)
	require.Truef(t, want.FeesEnter.Fees.Equal(got.FeesEnter.Fees), "fees enter: %s", got.FeesEnter.Fees)
	require.Truef(t, want.FeesExit.Fees.Equal(got.FeesExit.Fees), "fees exit: %s", got.FeesExit.Fees)
	require.True(t, want.TimeEnter.Equal(got.TimeEnter))
	require.True(t, want.TimeExit.Equal(got.TimeExit))
	require.Equal(t, want.Trades, got.Trades)
}
