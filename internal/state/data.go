package state

import (
	"time"

	"github.com/shopspring/decimal"

	"toucan/internal/schema"
)

// InstrumentData is the per-instrument market data cache.
type InstrumentData interface {
	// Process applies a market event for the instrument.
	Process(event schema.MarketEvent)
	// Price returns the current reference price.
	Price() (decimal.Decimal, bool)
}

// TimedPrice is a price with the exchange time it was observed at.
type TimedPrice struct {
	Value decimal.Decimal `json:"value"`
	Time  time.Time       `json:"time"`
}

// MarketData caches the last traded price and the top of the book. Price
// prefers the book mid price and falls back to the last trade.
type MarketData struct {
	LastTradedPrice *TimedPrice         `json:"lastTradedPrice,omitempty"`
	L1              *schema.OrderBookL1 `json:"l1,omitempty"`
}

var _ InstrumentData = (*MarketData)(nil)

// NewMarketData is an InstrumentData factory for the builder.
func NewMarketData(schema.Instrument) InstrumentData {
	return &MarketData{}
}

// Process applies trades and L1 updates, ignoring anything older than the cached value.
func (d *MarketData) Process(event schema.MarketEvent) {
	switch event.Kind {
	case schema.MarketDataTrade:
		if event.Trade == nil {
			return
		}
		if d.LastTradedPrice != nil && event.TimeExchange.Before(d.LastTradedPrice.Time) {
			return
		}
		d.LastTradedPrice = &TimedPrice{Value: event.Trade.Price, Time: event.TimeExchange}
	case schema.MarketDataOrderBookL1:
		if event.OrderBookL1 == nil {
			return
		}
		if d.L1 != nil && event.OrderBookL1.LastUpdate.Before(d.L1.LastUpdate) {
			return
		}
		l1 := *event.OrderBookL1
		d.L1 = &l1
	}
}

// Price returns the L1 mid price, else the last traded price.
func (d *MarketData) Price() (decimal.Decimal, bool) {
	if d.L1 != nil {
		if mid, ok := d.L1.MidPrice(); ok {
			return mid, true
		}
	}
	if d.LastTradedPrice != nil {
		return d.LastTradedPrice.Value, true
	}
	return decimal.Zero, false
}

// GlobalData is strategy defined state fed every account and market event.
type GlobalData interface {
	ProcessAccount(event schema.AccountEvent)
	ProcessMarket(event schema.MarketEvent)
}

// DefaultGlobalData ignores every event.
type DefaultGlobalData struct{}

func (DefaultGlobalData) ProcessAccount(schema.AccountEvent) {}

func (DefaultGlobalData) ProcessMarket(schema.MarketEvent) {}
