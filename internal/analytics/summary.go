package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"toucan/internal/schema"
)

// TradingSummary is the session summary across instruments.
type TradingSummary struct {
	TimeEngineStart time.Time                               `json:"timeEngineStart"`
	TimeEngineEnd   time.Time                               `json:"timeEngineEnd"`
	RiskFreeReturn  decimal.Decimal                         `json:"riskFreeReturn"`
	Pnl             decimal.Decimal                         `json:"pnl"`
	Instruments     map[schema.InstrumentKey]TearSheet      `json:"instruments"`
	Balances        map[schema.AssetKey]schema.AssetBalance `json:"balances"`
}

// TradingSummaryGenerator bridges engine state to a TradingSummary.
type TradingSummaryGenerator struct {
	RiskFreeReturn  decimal.Decimal
	TimeEngineStart time.Time
	TimeEngineNow   time.Time
	Instruments     map[schema.InstrumentKey]TearSheetGenerator
	Balances        map[schema.AssetKey]schema.AssetBalance
}

// NewTradingSummaryGenerator creates a generator from per-instrument tear sheets and balances.
func NewTradingSummaryGenerator(
	riskFreeReturn decimal.Decimal,
	timeEngineStart, timeEngineNow time.Time,
	instruments map[schema.InstrumentKey]TearSheetGenerator,
	balances map[schema.AssetKey]schema.AssetBalance,
) *TradingSummaryGenerator {
	if instruments == nil {
		instruments = make(map[schema.InstrumentKey]TearSheetGenerator)
	}
	if balances == nil {
		balances = make(map[schema.AssetKey]schema.AssetBalance)
	}
	return &TradingSummaryGenerator{
		RiskFreeReturn:  riskFreeReturn,
		TimeEngineStart: timeEngineStart,
		TimeEngineNow:   timeEngineNow,
		Instruments:     instruments,
		Balances:        balances,
	}
}

// UpdateTimeNow sets the summary end time.
func (g *TradingSummaryGenerator) UpdateTimeNow(now time.Time) {
	g.TimeEngineNow = now
}

// UpdateFromPosition routes a closed position to its instrument tear sheet.
func (g *TradingSummaryGenerator) UpdateFromPosition(position schema.PositionExited) {
	sheet, ok := g.Instruments[position.Instrument]
	if !ok {
		sheet = NewTearSheetGenerator(g.TimeEngineStart)
	}
	sheet.UpdateFromPosition(position)
	g.Instruments[position.Instrument] = sheet
	if position.TimeExit.After(g.TimeEngineNow) {
		g.TimeEngineNow = position.TimeExit
	}
}

// UpdateFromBalance replaces the balance of an asset unless it is older than the one held.
func (g *TradingSummaryGenerator) UpdateFromBalance(balance schema.AssetBalance) {
	if current, ok := g.Balances[balance.Asset]; ok && balance.TimeExchange.Before(current.TimeExchange) {
		return
	}
	g.Balances[balance.Asset] = balance
}

// Generate builds the TradingSummary.
func (g *TradingSummaryGenerator) Generate() TradingSummary {
	summary := TradingSummary{
		TimeEngineStart: g.TimeEngineStart,
		TimeEngineEnd:   g.TimeEngineNow,
		RiskFreeReturn:  g.RiskFreeReturn,
		Instruments:     make(map[schema.InstrumentKey]TearSheet, len(g.Instruments)),
		Balances:        make(map[schema.AssetKey]schema.AssetBalance, len(g.Balances)),
	}
	for key, gen := range g.Instruments {
		sheet := gen.Generate()
		summary.Instruments[key] = sheet
		summary.Pnl = summary.Pnl.Add(sheet.Pnl)
	}
	for key, balance := range g.Balances {
		summary.Balances[key] = balance
	}
	return summary
}

// InstrumentKeys returns the summary's instrument keys in sorted order.
func (s TradingSummary) InstrumentKeys() []schema.InstrumentKey {
	keys := make([]schema.InstrumentKey, 0, len(s.Instruments))
	for key := range s.Instruments {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
