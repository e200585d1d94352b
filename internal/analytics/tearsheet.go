package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"toucan/internal/schema"
)

// PnLReturns accumulates realised PnL of closed positions.
type PnLReturns struct {
	PnlRaw      decimal.Decimal `json:"pnlRaw"`
	Count       int             `json:"count"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	GrossProfit decimal.Decimal `json:"grossProfit"`
	GrossLoss   decimal.Decimal `json:"grossLoss"`
	ReturnSum   decimal.Decimal `json:"returnSum"`
}

func (r *PnLReturns) update(position schema.PositionExited) {
	r.Count++
	r.PnlRaw = r.PnlRaw.Add(position.PnlRealised)
	r.ReturnSum = r.ReturnSum.Add(position.PnlReturn())
	switch position.PnlRealised.Sign() {
	case 1:
		r.Wins++
		r.GrossProfit = r.GrossProfit.Add(position.PnlRealised)
	case -1:
		r.Losses++
		r.GrossLoss = r.GrossLoss.Add(position.PnlRealised.Abs())
	}
}

// TearSheet is the performance summary of one instrument.
type TearSheet struct {
	Pnl          decimal.Decimal  `json:"pnl"`
	PnlReturn    decimal.Decimal  `json:"pnlReturn"`
	Positions    int              `json:"positions"`
	WinRate      *decimal.Decimal `json:"winRate,omitempty"`
	ProfitFactor *decimal.Decimal `json:"profitFactor,omitempty"`
}

// TearSheetGenerator is fed every closed position of one instrument.
type TearSheetGenerator struct {
	TimeEngineNow time.Time  `json:"timeEngineNow"`
	PnlReturns    PnLReturns `json:"pnlReturns"`
}

// NewTearSheetGenerator creates an empty generator.
func NewTearSheetGenerator(timeEngineStart time.Time) TearSheetGenerator {
	return TearSheetGenerator{TimeEngineNow: timeEngineStart}
}

// UpdateFromPosition accumulates a closed position.
func (g *TearSheetGenerator) UpdateFromPosition(position schema.PositionExited) {
	g.TimeEngineNow = position.TimeExit
	g.PnlReturns.update(position)
}

// Generate builds the tear sheet from the accumulated positions.
func (g *TearSheetGenerator) Generate() TearSheet {
	r := g.PnlReturns
	sheet := TearSheet{
		Pnl:       r.PnlRaw,
		Positions: r.Count,
	}
	if r.Count > 0 {
		count := decimal.NewFromInt(int64(r.Count))
		sheet.PnlReturn = r.ReturnSum.Div(count)
		winRate := decimal.NewFromInt(int64(r.Wins)).Div(count)
		sheet.WinRate = &winRate
	}
	sheet.ProfitFactor = profitFactor(r.GrossProfit, r.GrossLoss)
	return sheet
}

// Reset clears the generator.
func (g *TearSheetGenerator) Reset(timeEngineStart time.Time) {
	*g = NewTearSheetGenerator(timeEngineStart)
}

// profitFactor is gross profit over gross loss. No trades gives nil, no
// losses gives the gross profit itself as an unbounded marker.
func profitFactor(profit, loss decimal.Decimal) *decimal.Decimal {
	switch {
	case profit.IsZero() && loss.IsZero():
		return nil
	case loss.IsZero():
		v := profit
		return &v
	default:
		v := profit.Div(loss)
		return &v
	}
}
