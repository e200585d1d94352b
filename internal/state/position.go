package state

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"toucan/internal/schema"
)

// Position is the open exposure of one instrument.
type Position struct {
	Instrument         schema.InstrumentKey `json:"instrument"`
	Side               schema.Side          `json:"side"`
	PriceEntryAverage  decimal.Decimal      `json:"priceEntryAverage"`
	QuantityAbs        decimal.Decimal      `json:"quantityAbs"`
	QuantityAbsMax     decimal.Decimal      `json:"quantityAbsMax"`
	PnlUnrealised      decimal.Decimal      `json:"pnlUnrealised"`
	PnlRealised        decimal.Decimal      `json:"pnlRealised"`
	FeesEnter          schema.AssetFees     `json:"feesEnter"`
	FeesExit           schema.AssetFees     `json:"feesExit"`
	TimeEnter          time.Time            `json:"timeEnter"`
	TimeExchangeUpdate time.Time            `json:"timeExchangeUpdate"`
	Trades             []schema.TradeID     `json:"trades"`
}

func newPosition(trade schema.Trade, quantity decimal.Decimal, fees decimal.Decimal) *Position {
	p := &Position{
		Instrument:         trade.Instrument,
		Side:               trade.Side,
		PriceEntryAverage:  trade.Price,
		QuantityAbs:        quantity.Abs(),
		QuantityAbsMax:     quantity.Abs(),
		PnlRealised:        fees.Neg(),
		FeesEnter:          schema.AssetFees{Asset: trade.Fees.Asset, Fees: fees},
		FeesExit:           schema.AssetFees{Asset: trade.Fees.Asset, Fees: decimal.Zero},
		TimeEnter:          trade.TimeExchange,
		TimeExchangeUpdate: trade.TimeExchange,
		Trades:             []schema.TradeID{trade.ID},
	}
	p.UpdatePnlUnrealised(trade.Price)
	return p
}

// UpdatePnlUnrealised recomputes unrealised PnL at price, net of the approximate exit fees.
func (p *Position) UpdatePnlUnrealised(price decimal.Decimal) {
	valueEntry := p.PriceEntryAverage.Mul(p.QuantityAbs)
	valueNow := price.Mul(p.QuantityAbs)
	approxExitFees := decimal.Zero
	if !p.QuantityAbsMax.IsZero() {
		approxExitFees = p.FeesEnter.Fees.Mul(p.QuantityAbs).Div(p.QuantityAbsMax)
	}
	switch p.Side {
	case schema.SideBuy:
		p.PnlUnrealised = valueNow.Sub(valueEntry).Sub(approxExitFees)
	case schema.SideSell:
		p.PnlUnrealised = valueEntry.Sub(valueNow).Sub(approxExitFees)
	}
}

// realised returns the PnL of closing quantity at price, net of fees.
func (p *Position) realised(price, quantity, fees decimal.Decimal) decimal.Decimal {
	switch p.Side {
	case schema.SideBuy:
		return price.Sub(p.PriceEntryAverage).Mul(quantity).Sub(fees)
	case schema.SideSell:
		return p.PriceEntryAverage.Sub(price).Mul(quantity).Sub(fees)
	default:
		return fees.Neg()
	}
}

func (p *Position) exit(trade schema.Trade) schema.PositionExited {
	return schema.PositionExited{
		Instrument:        p.Instrument,
		Side:              p.Side,
		PriceEntryAverage: p.PriceEntryAverage,
		QuantityAbsMax:    p.QuantityAbsMax,
		PnlRealised:       p.PnlRealised,
		FeesEnter:         p.FeesEnter,
		FeesExit:          p.FeesExit,
		TimeEnter:         p.TimeEnter,
		TimeExit:          trade.TimeExchange,
		Trades:            append([]schema.TradeID(nil), p.Trades...),
	}
}

// update applies trade and returns the position that remains open, if any,
// plus the exit record when the trade closed this position.
func (p *Position) update(trade schema.Trade) (*Position, *schema.PositionExited) {
	quantity := trade.Quantity.Abs()
	fees := trade.Fees.Fees

	if trade.Side == p.Side {
		total := p.QuantityAbs.Add(quantity)
		p.PriceEntryAverage = p.PriceEntryAverage.Mul(p.QuantityAbs).
			Add(trade.Price.Mul(quantity)).
			Div(total)
		p.QuantityAbs = total
		p.QuantityAbsMax = decimal.Max(p.QuantityAbsMax, total)
		p.PnlRealised = p.PnlRealised.Sub(fees)
		p.FeesEnter.Fees = p.FeesEnter.Fees.Add(fees)
		p.TimeExchangeUpdate = trade.TimeExchange
		p.Trades = append(p.Trades, trade.ID)
		p.UpdatePnlUnrealised(trade.Price)
		return p, nil
	}

	switch quantity.Cmp(p.QuantityAbs) {
	case -1:
		p.QuantityAbs = p.QuantityAbs.Sub(quantity)
		p.PnlRealised = p.PnlRealised.Add(p.realised(trade.Price, quantity, fees))
		p.FeesExit.Fees = p.FeesExit.Fees.Add(fees)
		p.TimeExchangeUpdate = trade.TimeExchange
		p.Trades = append(p.Trades, trade.ID)
		p.UpdatePnlUnrealised(trade.Price)
		return p, nil

	case 0:
		p.PnlRealised = p.PnlRealised.Add(p.realised(trade.Price, quantity, fees))
		p.FeesExit.Fees = p.FeesExit.Fees.Add(fees)
		p.Trades = append(p.Trades, trade.ID)
		exited := p.exit(trade)
		return nil, &exited

	default:
		closing := p.QuantityAbs
		closingFees := fees.Mul(closing).Div(quantity)
		openingFees := fees.Sub(closingFees)

		p.PnlRealised = p.PnlRealised.Add(p.realised(trade.Price, closing, closingFees))
		p.FeesExit.Fees = p.FeesExit.Fees.Add(closingFees)
		p.Trades = append(p.Trades, trade.ID)
		exited := p.exit(trade)

		return newPosition(trade, quantity.Sub(closing), openingFees), &exited
	}
}

// PositionManager owns the current position of one instrument.
type PositionManager struct {
	Current *Position `json:"current,omitempty"`
}

// UpdateFromTrade applies trade and returns the exit record if the trade closed the position.
// Zero quantity trades leave the position untouched.
func (m *PositionManager) UpdateFromTrade(trade schema.Trade) *schema.PositionExited {
	if trade.Quantity.IsZero() {
		logs.Errorf("ignore zero quantity trade, id: %s, instrument: %s", trade.ID, trade.Instrument)
		return nil
	}
	if m.Current == nil {
		m.Current = newPosition(trade, trade.Quantity, trade.Fees.Fees)
		return nil
	}
	next, exited := m.Current.update(trade)
	m.Current = next
	return exited
}
