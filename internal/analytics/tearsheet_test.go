package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toucan/internal/schema"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func exited(instrument schema.InstrumentKey, pnl string, exitDay int) schema.PositionExited {
	return schema.PositionExited{
		Instrument:        instrument,
		Side:              schema.SideBuy,
		PriceEntryAverage: decimal.NewFromInt(100),
		QuantityAbsMax:    decimal.NewFromInt(1),
		PnlRealised:       decimal.RequireFromString(pnl),
		TimeEnter:         start,
		TimeExit:          start.AddDate(0, 0, exitDay),
	}
}

func TestTearSheetGenerator(t *testing.T) {
	gen := NewTearSheetGenerator(start)
	empty := gen.Generate()
	assert.True(t, empty.Pnl.IsZero())
	assert.Nil(t, empty.WinRate)
	assert.Nil(t, empty.ProfitFactor)

	gen.UpdateFromPosition(exited("inst0", "30", 1))
	gen.UpdateFromPosition(exited("inst0", "-10", 2))
	gen.UpdateFromPosition(exited("inst0", "20", 3))

	sheet := gen.Generate()
	assert.True(t, sheet.Pnl.Equal(decimal.NewFromInt(40)), "pnl: %s", sheet.Pnl)
	assert.Equal(t, 3, sheet.Positions)
	require.NotNil(t, sheet.WinRate)
	assert.True(t, sheet.WinRate.Equal(decimal.NewFromInt(2).Div(decimal.NewFromInt(3))))
	require.NotNil(t, sheet.ProfitFactor)
	assert.True(t, sheet.ProfitFactor.Equal(decimal.NewFromInt(5)), "profit factor: %s", sheet.ProfitFactor)
	assert.True(t, gen.TimeEngineNow.Equal(start.AddDate(0, 0, 3)))

	gen.Reset(start)
	assert.Equal(t, 0, gen.PnlReturns.Count)
}

func TestTradingSummaryGenerator(t *testing.T) {
	gen := NewTradingSummaryGenerator(decimal.RequireFromString("0.05"), start, start, nil, nil)
	gen.UpdateFromPosition(exited("inst0", "7000", 3))
	gen.UpdateFromPosition(exited("inst1", "-0.065", 5))

	summary := gen.Generate()
	assert.True(t, summary.TimeEngineEnd.Equal(start.AddDate(0, 0, 5)))
	assert.Equal(t, []schema.InstrumentKey{"inst0", "inst1"}, summary.InstrumentKeys())
	assert.True(t, summary.Instruments["inst0"].Pnl.Equal(decimal.NewFromInt(7000)))
	assert.True(t, summary.Instruments["inst1"].Pnl.Equal(decimal.RequireFromString("-0.065")))
	assert.True(t, summary.Pnl.Equal(decimal.RequireFromString("6999.935")))
}

func TestTradingSummaryGeneratorBalances(t *testing.T) {
	quote := func(total int64, at time.Time) schema.AssetBalance {
		return schema.AssetBalance{Asset: "quote", Balance: schema.NewBalance(decimal.NewFromInt(total), decimal.NewFromInt(total)), TimeExchange: at}
	}
	gen := NewTradingSummaryGenerator(decimal.Zero, start, start, nil, map[schema.AssetKey]schema.AssetBalance{"quote": quote(1000, start)})

	gen.UpdateFromBalance(quote(900, start.Add(time.Hour)))
	gen.UpdateFromBalance(quote(1200, start.Add(time.Minute)))
	gen.UpdateFromBalance(schema.AssetBalance{Asset: "base", Balance: schema.NewBalance(decimal.NewFromInt(1), decimal.NewFromInt(1)), TimeExchange: start.Add(time.Hour)})

	summary := gen.Generate()
	assert.True(t, summary.Balances["quote"].Balance.Total.Equal(decimal.NewFromInt(900)), summary.Balances["quote"].Balance.Total.String())
	assert.True(t, summary.Balances["base"].Balance.Total.Equal(decimal.NewFromInt(1)))
}
