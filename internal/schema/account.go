package schema

import "time"

// AccountEventKind describes the payload of an AccountEvent.
type AccountEventKind uint8

const (
	AccountEventUnknown AccountEventKind = iota
	AccountEventSnapshot
	AccountEventBalanceSnapshot
	AccountEventOrderSnapshot
	AccountEventOrderCancelled
	AccountEventTrade
)

func (k AccountEventKind) String() string {
	switch k {
	case AccountEventSnapshot:
		return "snapshot"
	case AccountEventBalanceSnapshot:
		return "balance_snapshot"
	case AccountEventOrderSnapshot:
		return "order_snapshot"
	case AccountEventOrderCancelled:
		return "order_cancelled"
	case AccountEventTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// InstrumentAccountSnapshot holds the open orders of one instrument.
type InstrumentAccountSnapshot struct {
	Instrument InstrumentKey `json:"instrument"`
	Orders     []Order       `json:"orders"`
}

// AccountSnapshot is the full account state of one exchange.
type AccountSnapshot struct {
	Exchange    ExchangeID                  `json:"exchange"`
	Balances    []AssetBalance              `json:"balances"`
	Instruments []InstrumentAccountSnapshot `json:"instruments"`
}

// AccountEvent is one update from an exchange account stream. Exactly one
// payload field matching Kind is set.
type AccountEvent struct {
	Exchange  ExchangeID           `json:"exchange"`
	Broker    string               `json:"broker,omitempty"`
	Account   string               `json:"account,omitempty"`
	Kind      AccountEventKind     `json:"kind"`
	Snapshot  *AccountSnapshot     `json:"snapshot,omitempty"`
	Balance   *AssetBalance        `json:"balance,omitempty"`
	Order     *Order               `json:"order,omitempty"`
	Cancelled *OrderResponseCancel `json:"cancelled,omitempty"`
	Trade     *Trade               `json:"trade,omitempty"`
}

// TimeExchange returns the exchange timestamp carried by the payload.
func (e AccountEvent) TimeExchange() (time.Time, bool) {
	switch e.Kind {
	case AccountEventBalanceSnapshot:
		if e.Balance != nil {
			return e.Balance.TimeExchange, true
		}
	case AccountEventOrderSnapshot:
		if e.Order != nil && !e.Order.State.TimeExchange.IsZero() {
			return e.Order.State.TimeExchange, true
		}
	case AccountEventOrderCancelled:
		if e.Cancelled != nil && !e.Cancelled.TimeExchange.IsZero() {
			return e.Cancelled.TimeExchange, true
		}
	case AccountEventTrade:
		if e.Trade != nil {
			return e.Trade.TimeExchange, true
		}
	}
	return time.Time{}, false
}

// AccountStreamEvent is either a reconnecting notification for Exchange or an Item.
type AccountStreamEvent struct {
	Reconnecting bool          `json:"reconnecting,omitempty"`
	Exchange     ExchangeID    `json:"exchange,omitempty"`
	Item         *AccountEvent `json:"item,omitempty"`
}

// AccountReconnecting builds a reconnecting notification.
func AccountReconnecting(exchange ExchangeID) AccountStreamEvent {
	return AccountStreamEvent{Reconnecting: true, Exchange: exchange}
}

// AccountItem wraps an account event.
func AccountItem(event AccountEvent) AccountStreamEvent {
	return AccountStreamEvent{Exchange: event.Exchange, Item: &event}
}

// BalanceSnapshotEvent builds a balance snapshot account event.
func BalanceSnapshotEvent(exchange ExchangeID, balance AssetBalance) AccountEvent {
	return AccountEvent{Exchange: exchange, Kind: AccountEventBalanceSnapshot, Balance: &balance}
}

// OrderSnapshotEvent builds an order snapshot account event.
func OrderSnapshotEvent(exchange ExchangeID, order Order) AccountEvent {
	return AccountEvent{Exchange: exchange, Kind: AccountEventOrderSnapshot, Order: &order}
}

// OrderCancelledEvent builds a cancel response account event.
func OrderCancelledEvent(exchange ExchangeID, response OrderResponseCancel) AccountEvent {
	return AccountEvent{Exchange: exchange, Kind: AccountEventOrderCancelled, Cancelled: &response}
}

// TradeEvent builds a trade account event.
func TradeEvent(exchange ExchangeID, trade Trade) AccountEvent {
	return AccountEvent{Exchange: exchange, Kind: AccountEventTrade, Trade: &trade}
}
