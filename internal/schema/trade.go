package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetFees is the fee paid for a trade, denominated in Asset.
type AssetFees struct {
	Asset AssetKey        `json:"asset"`
	Fees  decimal.Decimal `json:"fees"`
}

// QuoteFees builds fees paid in the instrument's quote asset.
func QuoteFees(fees decimal.Decimal) AssetFees {
	return AssetFees{Asset: QuoteAsset, Fees: fees}
}

// QuoteAsset is the placeholder asset for fees paid in an instrument's quote.
const QuoteAsset AssetKey = "quote_asset"

// Trade is a private fill reported by an exchange.
type Trade struct {
	ID           TradeID         `json:"id"`
	OrderID      OrderID         `json:"orderId"`
	Instrument   InstrumentKey   `json:"instrument"`
	Strategy     StrategyID      `json:"strategy"`
	TimeExchange time.Time       `json:"timeExchange"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Fees         AssetFees       `json:"fees"`
}

// QuoteValue returns price * quantity.
func (t Trade) QuoteValue() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
