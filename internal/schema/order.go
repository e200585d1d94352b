package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side describes order and position direction.
type Side uint8

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideUnknown
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderKind describes the order type.
type OrderKind uint8

const (
	OrderKindUnknown OrderKind = iota
	OrderKindMarket
	OrderKindLimit
)

// TimeInForceKind describes how long an order rests on the book.
type TimeInForceKind uint8

const (
	TimeInForceUnknown TimeInForceKind = iota
	TimeInForceGoodUntilCancelled
	TimeInForceGoodUntilEndOfDay
	TimeInForceFillOrKill
	TimeInForceImmediateOrCancel
)

// TimeInForce is the order time-in-force. PostOnly only applies to
// TimeInForceGoodUntilCancelled.
type TimeInForce struct {
	Kind     TimeInForceKind `json:"kind"`
	PostOnly bool            `json:"postOnly,omitempty"`
}

// GoodUntilCancelled builds a GTC time-in-force.
func GoodUntilCancelled(postOnly bool) TimeInForce {
	return TimeInForce{Kind: TimeInForceGoodUntilCancelled, PostOnly: postOnly}
}

// ImmediateOrCancel builds an IOC time-in-force.
func ImmediateOrCancel() TimeInForce {
	return TimeInForce{Kind: TimeInForceImmediateOrCancel}
}

// OrderKey identifies an order across the engine and the exchange.
type OrderKey struct {
	Exchange   ExchangeID    `json:"exchange"`
	Instrument InstrumentKey `json:"instrument"`
	Strategy   StrategyID    `json:"strategy"`
	CID        ClientOrderID `json:"cid"`
}

// RequestOpen holds the parameters of an open order request.
type RequestOpen struct {
	Side        Side            `json:"side"`
	Kind        OrderKind       `json:"kind"`
	TimeInForce TimeInForce     `json:"timeInForce"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// OrderRequestOpen asks an exchange to open an order.
type OrderRequestOpen struct {
	Key   OrderKey    `json:"key"`
	State RequestOpen `json:"state"`
}

// OrderRequestCancel asks an exchange to cancel an order. ID is optional,
// exchanges may cancel by client order id.
type OrderRequestCancel struct {
	Key OrderKey `json:"key"`
	ID  OrderID  `json:"id,omitempty"`
}

// OrderStatus is the lifecycle stage of an order.
type OrderStatus uint8

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusOpenInFlight
	OrderStatusOpen
	OrderStatusCancelInFlight
	OrderStatusCancelled
	OrderStatusFilled
	OrderStatusRejected
	OrderStatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpenInFlight:
		return "open_in_flight"
	case OrderStatusOpen:
		return "open"
	case OrderStatusCancelInFlight:
		return "cancel_in_flight"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Active reports whether the status belongs on the engine's active order map.
func (s OrderStatus) Active() bool {
	switch s {
	case OrderStatusOpenInFlight, OrderStatusOpen, OrderStatusCancelInFlight:
		return true
	default:
		return false
	}
}

// OrderState is the exchange state of an order. ID, TimeExchange and
// FilledQuantity are set once the exchange acknowledged the order.
type OrderState struct {
	Status         OrderStatus     `json:"status"`
	ID             OrderID         `json:"id,omitempty"`
	TimeExchange   time.Time       `json:"timeExchange"`
	FilledQuantity decimal.Decimal `json:"filledQuantity"`
	Reason         string          `json:"reason,omitempty"`
}

// OpenState builds an OrderStatusOpen state.
func OpenState(id OrderID, timeExchange time.Time, filled decimal.Decimal) OrderState {
	return OrderState{
		Status:         OrderStatusOpen,
		ID:             id,
		TimeExchange:   timeExchange,
		FilledQuantity: filled,
	}
}

// FilledState builds an OrderStatusFilled state.
func FilledState() OrderState {
	return OrderState{Status: OrderStatusFilled}
}

// Order is a snapshot of one order.
type Order struct {
	Key         OrderKey        `json:"key"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Kind        OrderKind       `json:"kind"`
	TimeInForce TimeInForce     `json:"timeInForce"`
	State       OrderState      `json:"state"`
}

// OrderFromRequest builds the in-flight order for an open request.
func OrderFromRequest(req OrderRequestOpen) Order {
	return Order{
		Key:         req.Key,
		Side:        req.State.Side,
		Price:       req.State.Price,
		Quantity:    req.State.Quantity,
		Kind:        req.State.Kind,
		TimeInForce: req.State.TimeInForce,
		State:       OrderState{Status: OrderStatusOpenInFlight},
	}
}

// CancelErrorKind categorises a failed cancel.
type CancelErrorKind uint8

const (
	CancelErrorUnknown CancelErrorKind = iota
	CancelErrorOrderNotFound
	CancelErrorOrderAlreadyFinished
	CancelErrorRejected
	CancelErrorConnectivity
)

// OrderResponseCancel is the exchange response to a cancel request. A zero
// Error kind with an empty message means success.
type OrderResponseCancel struct {
	Key          OrderKey        `json:"key"`
	ID           OrderID         `json:"id,omitempty"`
	TimeExchange time.Time       `json:"timeExchange"`
	Error        CancelErrorKind `json:"error,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Succeeded reports whether the cancel was applied by the exchange.
func (r OrderResponseCancel) Succeeded() bool {
	return r.Error == CancelErrorUnknown && r.Message == ""
}
