package schema

// ExchangeID identifies an exchange (or execution venue), e.g. "mock", "b3".
type ExchangeID string

// ExchangeMock is the in-process simulated exchange.
const ExchangeMock ExchangeID = "mock"

// InstrumentKey is the engine-internal instrument name.
type InstrumentKey string

// AssetKey is the engine-internal asset name.
type AssetKey string

// StrategyID identifies the strategy that owns an order.
type StrategyID string

// ClientOrderID is the strategy generated order id.
type ClientOrderID string

// OrderID is the exchange assigned order id.
type OrderID string

// TradeID is the exchange assigned trade id.
type TradeID string
