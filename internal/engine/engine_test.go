package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toucan/internal/schema"
	"toucan/internal/state"
	"toucan/internal/strategy"
)

type step struct {
	desc  string
	event func(h *harness) Event
	check func(t *testing.T, h *harness, audit Audit)
}

func fixed(event Event) func(*harness) Event {
	return func(*harness) Event { return event }
}

func noOutputs(t *testing.T, _ *harness, audit Audit) {
	t.Helper()
	require.Empty(t, audit.Outputs)
	require.Empty(t, audit.Errors)
}

func ordersEmpty(inst int) func(*testing.T, *harness, Audit) {
	return func(t *testing.T, h *harness, audit Audit) {
		noOutputs(t, h, audit)
		s, ok := h.engine.State().Instruments.Instrument(instKey(inst))
		require.True(t, ok)
		require.Zero(t, s.Orders.Len())
	}
}

func balanceIs(asset schema.AssetKey, total, free string, days int) func(*testing.T, *harness, Audit) {
	return func(t *testing.T, h *harness, audit Audit) {
		noOutputs(t, h, audit)
		requireBalance(t, h.engine.State(), asset, total, free, days)
	}
}

func limitSell() schema.OrderRequestOpen {
	return schema.OrderRequestOpen{
		Key: orderKey(1),
		State: schema.RequestOpen{
			Side:        schema.SideSell,
			Kind:        schema.OrderKindLimit,
			TimeInForce: schema.GoodUntilCancelled(true),
			Price:       dec("0.05"),
			Quantity:    dec("1"),
		},
	}
}

// buyAndHoldSession is a full session: two buy-and-hold entries, a commanded market
// close of inst0 and a commanded limit close of inst1.
func buyAndHoldSession() []step {
	return []step{
		{
			desc:  "initial account snapshot",
			event: func(h *harness) Event { return accountSnapshot(h.engine.State()) },
			check: func(t *testing.T, h *harness, audit Audit) {
				noOutputs(t, h, audit)
				assert.Equal(t, state.HealthReconnecting, h.engine.State().Connectivity.Global)
			},
		},
		{
			desc:  "first inst0 trade",
			event: fixed(marketTrade(1, 0, "10000")),
			check: func(t *testing.T, h *harness, audit Audit) {
				noOutputs(t, h, audit)
				assert.Equal(t, state.HealthHealthy, h.engine.State().Connectivity.Global)
			},
		},
		{
			desc:  "first inst1 trade",
			event: fixed(marketTrade(1, 1, "0.1")),
			check: noOutputs,
		},
		{
			desc:  "enable trading",
			event: fixed(TradingStateEvent(state.TradingEnabled)),
			check: func(t *testing.T, h *harness, audit Audit) {
				require.Len(t, audit.Outputs, 1)
				out := audit.Outputs[0]
				require.Equal(t, OutputAlgoOrders, out.Kind)
				require.NotNil(t, out.AlgoOrders)
				assert.True(t, out.AlgoOrders.Cancels.IsEmpty())
				assert.Empty(t, out.AlgoOrders.Opens.Errors)
				assert.Empty(t, out.AlgoOrders.RefusedOpens)

				want := []schema.OrderRequestOpen{marketBuy(0, "10000"), marketBuy(1, "0.1")}
				requireOpens(t, want, out.AlgoOrders.Opens.Sent)
				h.requireSentOpen(t, want[0])
				h.requireSentOpen(t, want[1])
			},
		},
		{
			desc:  "disable trading",
			event: fixed(TradingStateEvent(state.TradingDisabled)),
			check: func(t *testing.T, h *harness, audit Audit) {
				require.Equal(t, []Output{hookOutput(OutputOnTradingDisabled, strategy.TradingDisabled{Strategy: strategyID})}, audit.Outputs)
			},
		},
		{desc: "inst0 buy filled", event: fixed(orderResponse(0, 2, schema.SideBuy, "10000", "1", "1")), check: ordersEmpty(0)},
		{
			desc:  "inst0 buy trade",
			event: fixed(accountTrade(0, 2, schema.SideBuy, "10000", "1")),
			check: func(t *testing.T, h *harness, audit Audit) {
				noOutputs(t, h, audit)
				s, _ := h.engine.State().Instruments.Instrument(instKey(0))
				require.NotNil(t, s.Position.Current)
				assert.True(t, s.Position.Current.PnlRealised.Equal(dec("-1000")))
			},
		},
		{desc: "quote reduced", event: fixed(balanceUpdate("quote", 2, "9000", "9000")), check: balanceIs("quote", "9000", "9000", 2)},
		{desc: "base increased", event: fixed(balanceUpdate("base", 2, "2", "2")), check: balanceIs("base", "2", "2", 2)},
		{desc: "inst1 buy filled", event: fixed(orderResponse(1, 2, schema.SideBuy, "0.1", "1", "1")), check: ordersEmpty(1)},
		{desc: "inst1 buy trade", event: fixed(accountTrade(1, 2, schema.SideBuy, "0.1", "1")), check: noOutputs},
		{desc: "base reduced", event: fixed(balanceUpdate("base", 2, "0.99", "0.99")), check: balanceIs("base", "0.99", "0.99", 2)},
		{desc: "alt increased", event: fixed(balanceUpdate("alt", 2, "11", "11")), check: balanceIs("alt", "11", "11", 2)},
		{desc: "second inst0 trade", event: fixed(marketTrade(2, 0, "20000")), check: noOutputs},
		{desc: "second inst1 trade", event: fixed(marketTrade(2, 1, "0.05")), check: noOutputs},
		{
			desc:  "close inst0 position",
			event: fixed(closePosition(0)),
			check: func(t *testing.T, h *harness, audit Audit) {
				require.Empty(t, audit.Errors)
				require.Len(t, audit.Outputs, 1)
				out := audit.Outputs[0]
				require.Equal(t, OutputCommanded, out.Kind)
				require.NotNil(t, out.Commanded)
				assert.Equal(t, CommandClosePositions, out.Commanded.Kind)
				assert.True(t, out.Commanded.Cancels.IsEmpty())
				assert.Empty(t, out.Commanded.Opens.Errors)

				sell := marketBuy(0, "20000")
				sell.State.Side = schema.SideSell
				requireOpens(t, []schema.OrderRequestOpen{sell}, out.Commanded.Opens.Sent)
				h.requireSentOpen(t, sell)
			},
		},
		{desc: "inst0 sell filled", event: fixed(orderResponse(0, 3, schema.SideSell, "20000", "1", "1")), check: ordersEmpty(0)},
		{desc: "quote increased", event: fixed(balanceUpdate("quote", 3, "27000", "27000")), check: balanceIs("quote", "27000", "27000", 3)},
		{desc: "base decreased", event: fixed(balanceUpdate("base", 3, "1", "1")), check: balanceIs("base", "1", "1", 3)},
		{
			desc:  "inst0 sell trade exits the position",
			event: fixed(accountTrade(0, 3, schema.SideSell, "20000", "1")),
			check: func(t *testing.T, h *harness, audit Audit) {
				require.Empty(t, audit.Errors)
				require.Len(t, audit.Outputs, 1)
				require.Equal(t, OutputPositionExit, audit.Outputs[0].Kind)
				requireExited(t, schema.PositionExited{
					Instrument:        instKey(0),
					Side:              schema.SideBuy,
					PriceEntryAverage: dec("10000"),
					QuantityAbsMax:    dec("1"),
					PnlRealised:       dec("7000"),
					FeesEnter:         schema.QuoteFees(dec("1000")),
					FeesExit:          schema.QuoteFees(dec("2000")),
					TimeEnter:         day(2),
					TimeExit:          day(3),
					Trades:            []schema.TradeID{tradeID(0), tradeID(0)},
				}, *audit.Outputs[0].PositionExit)

				s, _ := h.engine.State().Instruments.Instrument(instKey(0))
				assert.Nil(t, s.Position.Current)
			},
		},
		{
			desc:  "market stream reconnecting",
			event: fixed(MarketEvent(schema.MarketReconnecting(schema.ExchangeMock))),
			check: func(t *testing.T, h *harness, audit Audit) {
				require.Equal(t, []Output{hookOutput(OutputMarketDisconnect, strategy.Disconnected{Strategy: strategyID, Exchange: schema.ExchangeMock})}, audit.Outputs)

				connectivity := h.engine.State().Connectivity
				assert.Equal(t, state.HealthReconnecting, connectivity.Global)
				mock, ok := connectivity.Connectivity(schema.ExchangeMock)
				require.True(t, ok)
				assert.Equal(t, state.HealthReconnecting, mock.MarketData)
				assert.Equal(t, state.HealthHealthy, mock.Account)
			},
		},
		{
			desc:  "command limit sell of inst1",
			event: fixed(CommandEvent(SendOpenRequests(limitSell()))),
			check: func(t *testing.T, h *harness, audit Audit) {
				require.Empty(t, audit.Errors)
				require.Len(t, audit.Outputs, 1)
				out := audit.Outputs[0]
				require.Equal(t, OutputCommanded, out.Kind)
				assert.Equal(t, CommandSendOpenRequests, out.Commanded.Kind)
				requireOpens(t, []schema.OrderRequestOpen{limitSell()}, out.Commanded.Opens.Sent)
				h.requireSentOpen(t, limitSell())
			},
		},
		{
			desc:  "inst1 limit sell acknowledged",
			event: fixed(orderResponse(1, 4, schema.SideSell, "0.05", "1", "0")),
			check: func(t *testing.T, h *harness, audit Audit) {
				noOutputs(t, h, audit)
				s, _ := h.engine.State().Instruments.Instrument(instKey(1))
				require.Equal(t, 1, s.Orders.Len())

				order, ok := s.Orders.Get(cid(1))
				require.True(t, ok)
				assert.Equal(t, orderKey(1), order.Key)
				assert.Equal(t, schema.SideSell, order.Side)
				assert.Equal(t, schema.OrderKindLimit, order.Kind)
				assert.Equal(t, schema.GoodUntilCancelled(true), order.TimeInForce)
				assert.True(t, order.Price.Equal(dec("0.05")))
				assert.True(t, order.Quantity.Equal(dec("1")))
				assert.Equal(t, schema.OrderStatusOpen, order.State.Status)
				assert.Equal(t, orderID(1), order.State.ID)
				assert.True(t, order.State.TimeExchange.Equal(day(4)))
				assert.True(t, order.State.FilledQuantity.IsZero())
			},
		},
		{desc: "alt reserved", event: fixed(balanceUpdate("alt", 4, "11", "10")), check: balanceIs("alt", "11", "10", 4)},
		{
			desc: "inst1 limit sell filled",
			event: fixed(accountItem(schema.OrderSnapshotEvent(schema.ExchangeMock, schema.Order{
				Key:         orderKey(1),
				Side:        schema.SideSell,
				Price:       dec("0.05"),
				Quantity:    dec("1"),
				Kind:        schema.OrderKindLimit,
				TimeInForce: schema.GoodUntilCancelled(true),
				State:       schema.FilledState(),
			}))),
			check: ordersEmpty(1),
		},
		{
			desc:  "inst1 sell trade exits the position",
			event: fixed(accountTrade(1, 5, schema.SideSell, "0.05", "1")),
			check: func(t *testing.T, h *harness, audit Audit) {
				require.Len(t, audit.Outputs, 1)
				require.Equal(t, OutputPositionExit, audit.Outputs[0].Kind)
				requireExited(t, schema.PositionExited{
					Instrument:        instKey(1),
					Side:              schema.SideBuy,
					PriceEntryAverage: dec("0.1"),
					QuantityAbsMax:    dec("1"),
					PnlRealised:       dec("-0.065"),
					FeesEnter:         schema.QuoteFees(dec("0.01")),
					FeesExit:          schema.QuoteFees(dec("0.005")),
					TimeEnter:         day(2),
					TimeExit:          day(5),
					Trades:            []schema.TradeID{tradeID(1), tradeID(1)},
				}, *audit.Outputs[0].PositionExit)
			},
		},
		{desc: "alt released", event: fixed(balanceUpdate("alt", 5, "10", "10")), check: balanceIs("alt", "10", "10", 5)},
	}
}

func TestProcessBuyAndHoldSession(t *testing.T) {
	h := newHarness(state.TradingDisabled, nil)
	require.Equal(t, uint64(0), h.engine.Meta().Sequence)
	require.Equal(t, state.HealthReconnecting, h.engine.State().Connectivity.Global)

	for i, s := range buyAndHoldSession() {
		event := s.event(h)
		audit := h.engine.Process(event)
		require.Equalf(t, AuditProcess, audit.Kind, "step %d: %s", i, s.desc)
		require.Equalf(t, uint64(i), audit.Context.Sequence, "step %d: %s", i, s.desc)
		require.Equal(t, event, audit.Event)
		t.Run(s.desc, func(t *testing.T) {
			s.check(t, h, audit)
			h.requireNothingSent(t)
		})
	}

	summary := h.engine.TradingSummaryGenerator(riskFreeReturn)
	summary.UpdateTimeNow(day(5))
	assert.True(t, summary.RiskFreeReturn.Equal(riskFreeReturn))
	assert.True(t, summary.TimeEngineNow.Equal(day(5)))
	assert.True(t, h.engine.Time().Equal(day(5)))

	pnls := make(map[schema.InstrumentKey]string)
	for key, sheet := range summary.Instruments {
		pnls[key] = sheet.PnlReturns.PnlRaw.String()
	}
	assert.Equal(t, map[schema.InstrumentKey]string{instKey(0): "7000", instKey(1): "-0.065"}, pnls)

	generated := summary.Generate()
	assert.Equal(t, []schema.InstrumentKey{instKey(0), instKey(1)}, generated.InstrumentKeys())
	assert.True(t, generated.Pnl.Equal(dec("6999.935")))
	assert.True(t, generated.Balances["quote"].Balance.Total.Equal(dec("27000")))
}

func TestEventCodecReplay(t *testing.T) {
	live := newHarness(state.TradingDisabled, nil)
	var journal [][]byte
	var kinds [][]OutputKind
	for _, s := range buyAndHoldSession() {
		event := s.event(live)
		data, err := EncodeEvent(event)
		require.NoError(t, err)
		journal = append(journal, data)
		kinds = append(kinds, outputKinds(live.engine.Process(event)))
	}

	replay := newHarness(state.TradingDisabled, nil)
	for i, data := range journal {
		event, err := DecodeEvent(data)
		require.NoError(t, err)
		audit := replay.engine.Process(event)
		require.Equal(t, uint64(i), audit.Context.Sequence)
		require.Equalf(t, kinds[i], outputKinds(audit), "step %d", i)
	}

	ts := live.engine.Time().UnixNano()
	expected := live.engine.State().Snapshot(live.engine.Meta().Sequence, ts)
	actual := replay.engine.State().Snapshot(replay.engine.Meta().Sequence, replay.engine.Time().UnixNano())
	require.NoError(t, state.CompareSnapshots(expected, actual))
	assert.Equal(t, expected.TimeEngine, actual.TimeEngine)
}

func outputKinds(audit Audit) []OutputKind {
	out := make([]OutputKind, 0, len(audit.Outputs))
	for _, o := range audit.Outputs {
		out = append(out, o.Kind)
	}
	return out
}

func TestDecodeEventInvalid(t *testing.T) {
	_, err := DecodeEvent([]byte("{"))
	assert.Error(t, err)
}
