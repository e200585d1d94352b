package engine

import (
	"time"

	"toucan/internal/schema"
	"toucan/internal/state"
)

// EventKind describes an engine input.
type EventKind uint8

const (
	EventKindUnknown EventKind = iota
	EventKindShutdown
	EventKindCommand
	EventKindTradingStateUpdate
	EventKindAccount
	EventKindMarket
)

func (k EventKind) String() string {
	return k.Type().String()
}

// Type returns the journal record type of k.
func (k EventKind) Type() schema.EventType {
	switch k {
	case EventKindShutdown:
		return schema.EventShutdown
	case EventKindCommand:
		return schema.EventCommand
	case EventKindTradingStateUpdate:
		return schema.EventTradingState
	case EventKindAccount:
		return schema.EventAccount
	case EventKindMarket:
		return schema.EventMarket
	default:
		return schema.EventUnknown
	}
}

// Event is one engine input. Exactly one payload field matching Kind is set.
type Event struct {
	Kind         EventKind                  `json:"kind"`
	Command      *Command                   `json:"command,omitempty"`
	TradingState state.TradingState         `json:"tradingState,omitempty"`
	Account      *schema.AccountStreamEvent `json:"account,omitempty"`
	Market       *schema.MarketStreamEvent  `json:"market,omitempty"`
}

// ShutdownEvent asks the runner to stop.
func ShutdownEvent() Event {
	return Event{Kind: EventKindShutdown}
}

// CommandEvent wraps an operator command.
func CommandEvent(cmd Command) Event {
	return Event{Kind: EventKindCommand, Command: &cmd}
}

// TradingStateEvent sets the trading state.
func TradingStateEvent(s state.TradingState) Event {
	return Event{Kind: EventKindTradingStateUpdate, TradingState: s}
}

// AccountEvent wraps an account stream event.
func AccountEvent(e schema.AccountStreamEvent) Event {
	return Event{Kind: EventKindAccount, Account: &e}
}

// MarketEvent wraps a market stream event.
func MarketEvent(e schema.MarketStreamEvent) Event {
	return Event{Kind: EventKindMarket, Market: &e}
}

// TimeExchange returns the exchange timestamp carried by the event, if any.
func (e Event) TimeExchange() (time.Time, bool) {
	switch e.Kind {
	case EventKindAccount:
		if e.Account != nil && e.Account.Item != nil {
			return e.Account.Item.TimeExchange()
		}
	case EventKindMarket:
		if e.Market != nil && e.Market.Item != nil {
			return e.Market.Item.TimeExchange, !e.Market.Item.TimeExchange.IsZero()
		}
	}
	return time.Time{}, false
}

// CommandKind describes an operator command.
type CommandKind uint8

const (
	CommandUnknown CommandKind = iota
	CommandSendCancelRequests
	CommandSendOpenRequests
	CommandClosePositions
	CommandCancelOrders
)

func (k CommandKind) String() string {
	switch k {
	case CommandSendCancelRequests:
		return "send_cancel_requests"
	case CommandSendOpenRequests:
		return "send_open_requests"
	case CommandClosePositions:
		return "close_positions"
	case CommandCancelOrders:
		return "cancel_orders"
	default:
		return "unknown"
	}
}

// Command is an operator instruction executed without risk checks.
type Command struct {
	Kind    CommandKind                 `json:"kind"`
	Cancels []schema.OrderRequestCancel `json:"cancels,omitempty"`
	Opens   []schema.OrderRequestOpen   `json:"opens,omitempty"`
	Filter  state.InstrumentFilter      `json:"filter"`
}

// SendCancelRequests builds a command sending cancels as given.
func SendCancelRequests(cancels ...schema.OrderRequestCancel) Command {
	return Command{Kind: CommandSendCancelRequests, Cancels: cancels}
}

// SendOpenRequests builds a command sending opens as given.
func SendOpenRequests(opens ...schema.OrderRequestOpen) Command {
	return Command{Kind: CommandSendOpenRequests, Opens: opens}
}

// ClosePositions builds a command closing the positions matching filter.
func ClosePositions(filter state.InstrumentFilter) Command {
	return Command{Kind: CommandClosePositions, Filter: filter}
}

// CancelOrders builds a command cancelling the active orders matching filter.
func CancelOrders(filter state.InstrumentFilter) Command {
	return Command{Kind: CommandCancelOrders, Filter: filter}
}
