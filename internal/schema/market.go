package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketDataKind describes the meaning of a market event.
type MarketDataKind uint8

const (
	MarketDataUnknown MarketDataKind = iota
	MarketDataTrade
	MarketDataOrderBookL1
)

// PublicTrade is a public trade print.
type PublicTrade struct {
	ID     string          `json:"id"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Side   Side            `json:"side"`
}

// Level is one order book price level.
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderBookL1 is the top of the book.
type OrderBookL1 struct {
	LastUpdate time.Time `json:"lastUpdate"`
	BestBid    *Level    `json:"bestBid,omitempty"`
	BestAsk    *Level    `json:"bestAsk,omitempty"`
}

// MidPrice returns the average of best bid and best ask.
func (b OrderBookL1) MidPrice() (decimal.Decimal, bool) {
	if b.BestBid == nil || b.BestAsk == nil {
		return decimal.Zero, false
	}
	return b.BestBid.Price.Add(b.BestAsk.Price).Div(decimal.NewFromInt(2)), true
}

// MarketEvent is one normalised market data update.
type MarketEvent struct {
	TimeExchange time.Time      `json:"timeExchange"`
	TimeReceived time.Time      `json:"timeReceived"`
	Exchange     ExchangeID     `json:"exchange"`
	Instrument   InstrumentKey  `json:"instrument"`
	Kind         MarketDataKind `json:"kind"`
	Trade        *PublicTrade   `json:"trade,omitempty"`
	OrderBookL1  *OrderBookL1   `json:"orderBookL1,omitempty"`
}

// MarketStreamEvent is either a reconnecting notification for Exchange or an Item.
type MarketStreamEvent struct {
	Reconnecting bool         `json:"reconnecting,omitempty"`
	Exchange     ExchangeID   `json:"exchange,omitempty"`
	Item         *MarketEvent `json:"item,omitempty"`
}

// MarketReconnecting builds a reconnecting notification.
func MarketReconnecting(exchange ExchangeID) MarketStreamEvent {
	return MarketStreamEvent{Reconnecting: true, Exchange: exchange}
}

// MarketItem wraps a market event.
func MarketItem(event MarketEvent) MarketStreamEvent {
	return MarketStreamEvent{Exchange: event.Exchange, Item: &event}
}
