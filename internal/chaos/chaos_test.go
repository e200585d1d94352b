package chaos

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toucan/internal/engine"
	"toucan/internal/runner"
	"toucan/internal/schema"
	"toucan/internal/state"
)

var timeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func market(n int) []engine.Event {
	events := make([]engine.Event, 0, n)
	for i := 0; i < n; i++ {
		ts := timeStart.Add(time.Duration(i) * time.Second)
		events = append(events, engine.MarketEvent(schema.MarketItem(schema.MarketEvent{
			TimeExchange: ts,
			TimeReceived: ts,
			Exchange:     schema.ExchangeMock,
			Instrument:   "inst0",
			Kind:         schema.MarketDataTrade,
			Trade:        &schema.PublicTrade{Price: decimal.NewFromInt(int64(100 + i)), Amount: decimal.NewFromInt(1)},
		})))
	}
	return events
}

func drain(it runner.Iterator) []engine.Event {
	var out []engine.Event
	for {
		event, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, event)
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc string
		cfg  Config
		ok   bool
	}{
		{"zero", Config{}, true},
		{"drop above one", Config{DropRate: 1.5}, false},
		{"negative duplicate", Config{DuplicateRate: -0.1}, false},
		{"negative window", Config{ReorderWindow: -1}, false},
		{"negative delay", Config{MaxDelay: -time.Second}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
	assert.False(t, Config{ReorderWindow: 1}.Enabled())
	assert.True(t, Config{DropRate: 0.1}.Enabled())
}

func TestIteratorPassThrough(t *testing.T) {
	events := market(5)
	it, err := New(runner.NewSliceIterator(events), Config{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, events, drain(it))
}

func TestIteratorDropAll(t *testing.T) {
	events := append(market(3), engine.TradingStateEvent(state.TradingEnabled))
	it, err := New(runner.NewSliceIterator(events), Config{Seed: 1, DropRate: 1})
	require.NoError(t, err)
	out := drain(it)
	require.Len(t, out, 1)
	assert.Equal(t, engine.EventKindTradingStateUpdate, out[0].Kind)
}

func TestIteratorDuplicateAll(t *testing.T) {
	it, err := New(runner.NewSliceIterator(market(3)), Config{Seed: 1, DuplicateRate: 1})
	require.NoError(t, err)
	assert.Len(t, drain(it), 6)
}

func TestIteratorReorderKeepsEvents(t *testing.T) {
	events := market(20)
	it, err := New(runner.NewSliceIterator(events), Config{Seed: 3, ReorderWindow: 4})
	require.NoError(t, err)
	out := drain(it)
	require.Len(t, out, len(events))

	seen := make(map[string]int)
	for _, event := range out {
		seen[event.Market.Item.Trade.Price.String()]++
	}
	for _, event := range events {
		assert.Equal(t, 1, seen[event.Market.Item.Trade.Price.String()])
	}
}

func TestIteratorDelay(t *testing.T) {
	events := market(10)
	it, err := New(runner.NewSliceIterator(events), Config{Seed: 5, MaxDelay: time.Second})
	require.NoError(t, err)
	out := drain(it)
	require.Len(t, out, len(events))
	for i, event := range out {
		item := event.Market.Item
		assert.False(t, item.TimeReceived.Before(item.TimeExchange))
		assert.LessOrEqual(t, item.TimeReceived.Sub(item.TimeExchange), time.Second)
		assert.Equal(t, events[i].Market.Item.TimeReceived, item.TimeExchange, "source event %d untouched", i)
	}
}
