package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionExited is the record of a fully closed position.
type PositionExited struct {
	Instrument        InstrumentKey   `json:"instrument"`
	Side              Side            `json:"side"`
	PriceEntryAverage decimal.Decimal `json:"priceEntryAverage"`
	QuantityAbsMax    decimal.Decimal `json:"quantityAbsMax"`
	PnlRealised       decimal.Decimal `json:"pnlRealised"`
	FeesEnter         AssetFees       `json:"feesEnter"`
	FeesExit          AssetFees       `json:"feesExit"`
	TimeEnter         time.Time       `json:"timeEnter"`
	TimeExit          time.Time       `json:"timeExit"`
	Trades            []TradeID       `json:"trades"`
}

// PnlReturn returns realised PnL relative to the maximum entry value.
func (p PositionExited) PnlReturn() decimal.Decimal {
	cost := p.PriceEntryAverage.Mul(p.QuantityAbsMax).Abs()
	if cost.IsZero() {
		return decimal.Zero
	}
	return p.PnlRealised.Div(cost)
}
