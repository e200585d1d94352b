package risk

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"toucan/internal/schema"
	"toucan/internal/state"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testState(t require.TestingT) *state.EngineState {
	s := state.NewBuilder([]schema.Instrument{
		{Key: "inst0", Exchange: schema.ExchangeMock, Base: "base", Quote: "quote"},
	}, nil, nil).TimeEngineStart(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).Build()

	err := s.UpdateFromMarket(schema.MarketEvent{
		TimeExchange: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Exchange:     schema.ExchangeMock,
		Instrument:   "inst0",
		Kind:         schema.MarketDataTrade,
		Trade:        &schema.PublicTrade{Price: dec("100"), Amount: dec("1"), Side: schema.SideBuy},
	})
	require.NoError(t, err)
	return s
}

func open(cid string, side schema.Side, kind schema.OrderKind, price, qty string) schema.OrderRequestOpen {
	return schema.OrderRequestOpen{
		Key: schema.OrderKey{Exchange: schema.ExchangeMock, Instrument: "inst0", Strategy: "test", CID: schema.ClientOrderID(cid)},
		State: schema.RequestOpen{
			Side:        side,
			Kind:        kind,
			TimeInForce: schema.GoodUntilCancelled(false),
			Price:       dec(price),
			Quantity:    dec(qty),
		},
	}
}

func TestDefault(t *testing.T) {
	cancels := []schema.OrderRequestCancel{{Key: schema.OrderKey{CID: "c"}}}
	opens := []schema.OrderRequestOpen{open("o", schema.SideBuy, schema.OrderKindMarket, "1", "1")}

	result := Default{}.Check(nil, cancels, opens)
	assert.Equal(t, cancels, result.ApprovedCancels)
	assert.Equal(t, opens, result.ApprovedOpens)
	assert.Empty(t, result.RefusedCancels)
	assert.Empty(t, result.RefusedOpens)
}

func TestLimits(t *testing.T) {
	testCases := []struct {
		desc     string
		cfg      Config
		open     schema.OrderRequestOpen
		approved bool
	}{
		{"no limits", Config{}, open("a", schema.SideBuy, schema.OrderKindLimit, "100", "5"), true},
		{"kill switch", Config{KillSwitch: true}, open("a", schema.SideBuy, schema.OrderKindLimit, "100", "1"), false},
		{"zero quantity", Config{}, open("a", schema.SideBuy, schema.OrderKindLimit, "100", "0"), false},
		{"max quantity", Config{MaxOrderQuantity: dec("2")}, open("a", schema.SideBuy, schema.OrderKindLimit, "100", "3"), false},
		{"max quantity equal", Config{MaxOrderQuantity: dec("2")}, open("a", schema.SideBuy, schema.OrderKindLimit, "100", "2"), true},
		{"max notional", Config{MaxOrderNotional: dec("150")}, open("a", schema.SideBuy, schema.OrderKindLimit, "100", "2"), false},
		{"max notional from reference", Config{MaxOrderNotional: dec("150")}, open("a", schema.SideBuy, schema.OrderKindMarket, "0", "2"), false},
		{"max position", Config{MaxPosition: dec("1")}, open("a", schema.SideSell, schema.OrderKindLimit, "100", "2"), false},
		{"price band inside", Config{MaxPriceDeviationBps: 100}, open("a", schema.SideBuy, schema.OrderKindLimit, "101", "1"), true},
		{"price band outside", Config{MaxPriceDeviationBps: 100}, open("a", schema.SideBuy, schema.OrderKindLimit, "102", "1"), false},
		{"price band skips market", Config{MaxPriceDeviationBps: 100}, open("a", schema.SideBuy, schema.OrderKindMarket, "200", "1"), true},
	}

	s := testState(t)
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			result := NewLimits(tc.cfg).Check(s, nil, []schema.OrderRequestOpen{tc.open})
			if tc.approved {
				assert.Len(t, result.ApprovedOpens, 1)
				assert.Empty(t, result.RefusedOpens)
				return
			}
			assert.Empty(t, result.ApprovedOpens)
			require.Len(t, result.RefusedOpens, 1)
			assert.NotEmpty(t, result.RefusedOpens[0].Reason)
		})
	}
}

func TestLimitsPositionAccumulates(t *testing.T) {
	s := testState(t)
	opens := []schema.OrderRequestOpen{
		open("a", schema.SideBuy, schema.OrderKindMarket, "100", "1"),
		open("b", schema.SideBuy, schema.OrderKindMarket, "100", "1"),
		open("c", schema.SideSell, schema.OrderKindMarket, "100", "1"),
	}
	cancels := []schema.OrderRequestCancel{{Key: schema.OrderKey{CID: "x"}}}

	result := NewLimits(Config{MaxPosition: dec("1"), KillSwitch: false}).Check(s, cancels, opens)
	assert.Equal(t, cancels, result.ApprovedCancels)
	require.Len(t, result.ApprovedOpens, 2)
	assert.Equal(t, schema.ClientOrderID("a"), result.ApprovedOpens[0].Key.CID)
	assert.Equal(t, schema.ClientOrderID("c"), result.ApprovedOpens[1].Key.CID)
	require.Len(t, result.RefusedOpens, 1)
	assert.Equal(t, schema.ClientOrderID("b"), result.RefusedOpens[0].Item.Key.CID)
}

func TestLimitsTotality(t *testing.T) {
	s := testState(t)
	rapid.Check(t, func(t *rapid.T) {
		cfg := Config{
			KillSwitch:           rapid.Bool().Draw(t, "killSwitch"),
			MaxOrderQuantity:     decimal.NewFromInt(rapid.Int64Range(0, 10).Draw(t, "maxQty")),
			MaxOrderNotional:     decimal.NewFromInt(rapid.Int64Range(0, 2000).Draw(t, "maxNotional")),
			MaxPosition:          decimal.NewFromInt(rapid.Int64Range(0, 10).Draw(t, "maxPosition")),
			MaxPriceDeviationBps: rapid.Int64Range(0, 500).Draw(t, "maxDeviation"),
		}

		n := rapid.IntRange(0, 20).Draw(t, "opens")
		opens := make([]schema.OrderRequestOpen, 0, n)
		for i := range n {
			side := schema.SideBuy
			if rapid.Bool().Draw(t, "sell") {
				side = schema.SideSell
			}
			kind := schema.OrderKindMarket
			if rapid.Bool().Draw(t, "limit") {
				kind = schema.OrderKindLimit
			}
			price := decimal.NewFromInt(rapid.Int64Range(0, 200).Draw(t, "price"))
			qty := decimal.NewFromInt(rapid.Int64Range(0, 12).Draw(t, "qty"))
			opens = append(opens, open(fmt.Sprintf("o%d", i), side, kind, price.String(), qty.String()))
		}
		m := rapid.IntRange(0, 5).Draw(t, "cancels")
		cancels := make([]schema.OrderRequestCancel, 0, m)
		for i := range m {
			cancels = append(cancels, schema.OrderRequestCancel{Key: schema.OrderKey{CID: schema.ClientOrderID(fmt.Sprintf("c%d", i))}})
		}

		result := NewLimits(cfg).Check(s, cancels, opens)

		if len(result.ApprovedOpens)+len(result.RefusedOpens) != len(opens) {
			t.Fatalf("opens not partitioned: %d approved, %d refused, %d total",
				len(result.ApprovedOpens), len(result.RefusedOpens), len(opens))
		}
		if len(result.ApprovedCancels)+len(result.RefusedCancels) != len(cancels) {
			t.Fatalf("cancels not partitioned")
		}
		for _, refused := range result.RefusedOpens {
			if refused.Reason == "" {
				t.Fatalf("refusal without reason: %+v", refused.Item)
			}
		}
		if cfg.KillSwitch && len(result.ApprovedOpens) != 0 {
			t.Fatalf("kill switch approved %d opens", len(result.ApprovedOpens))
		}
	})
}

func TestUtil(t *testing.T) {
	diff, err := AbsPercentDifference(dec("90"), dec("100"))
	require.NoError(t, err)
	assert.True(t, diff.Equal(dec("0.1")))

	_, err = AbsPercentDifference(dec("1"), decimal.Zero)
	assert.True(t, errors.Is(err, ErrZeroDenominator))

	assert.True(t, QuoteNotional(dec("2"), dec("10"), dec("1")).Equal(dec("20")))

	assert.NoError(t, CheckHigherThan{Limit: dec("1")}.Check(dec("1")))
	assert.ErrorIs(t, CheckHigherThan{Limit: dec("1")}.Check(dec("1.1")), ErrHigherThanLimit)
}
