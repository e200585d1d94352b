package strategy

import (
	"fmt"

	"github.com/google/uuid"

	"toucan/internal/schema"
	"toucan/internal/state"
)

// AlgoStrategy generates orders from the current engine state while trading is enabled.
type AlgoStrategy interface {
	GenerateAlgoOrders(s *state.EngineState) ([]schema.OrderRequestCancel, []schema.OrderRequestOpen)
}

// ClosePositionsStrategy builds the requests that flatten the positions matching filter.
type ClosePositionsStrategy interface {
	ClosePositionsRequests(s *state.EngineState, filter state.InstrumentFilter) ([]schema.OrderRequestCancel, []schema.OrderRequestOpen)
}

// OnDisconnectStrategy is invoked when a market or account stream of exchange reconnects.
type OnDisconnectStrategy interface {
	OnDisconnect(exchange schema.ExchangeID) any
}

// OnTradingDisabledStrategy is invoked once on every Enabled to Disabled transition.
type OnTradingDisabledStrategy interface {
	OnTradingDisabled() any
}

// Strategy is everything the engine needs from a trading strategy.
type Strategy interface {
	AlgoStrategy
	ClosePositionsStrategy
	OnDisconnectStrategy
	OnTradingDisabledStrategy
}

// CIDFunc generates client order ids.
type CIDFunc func(instrument schema.InstrumentKey) schema.ClientOrderID

// UUIDCID generates random client order ids.
func UUIDCID(schema.InstrumentKey) schema.ClientOrderID {
	return schema.ClientOrderID(uuid.NewString())
}

// SequentialCID generates prefix-instrument-n ids, counting per generator. The ids
// repeat when the same events are processed again, so journal replays match.
func SequentialCID(prefix string) CIDFunc {
	var n uint64
	return func(instrument schema.InstrumentKey) schema.ClientOrderID {
		n++
		return schema.ClientOrderID(fmt.Sprintf("%s-%s-%d", prefix, instrument, n))
	}
}

// Disconnected is the OnDisconnect output of the strategies in this package.
type Disconnected struct {
	Strategy schema.StrategyID `json:"strategy"`
	Exchange schema.ExchangeID `json:"exchange"`
}

// TradingDisabled is the OnTradingDisabled output of the strategies in this package.
type TradingDisabled struct {
	Strategy schema.StrategyID `json:"strategy"`
}

// Default generates nothing and closes positions with IOC market orders.
type Default struct {
	ID  schema.StrategyID
	CID CIDFunc
}

var _ Strategy = (*Default)(nil)

// NewDefault creates a Default strategy with uuid client order ids.
func NewDefault() *Default {
	return &Default{ID: "default", CID: UUIDCID}
}

func (d *Default) GenerateAlgoOrders(*state.EngineState) ([]schema.OrderRequestCancel, []schema.OrderRequestOpen) {
	return nil, nil
}

func (d *Default) ClosePositionsRequests(s *state.EngineState, filter state.InstrumentFilter) ([]schema.OrderRequestCancel, []schema.OrderRequestOpen) {
	return nil, ClosePositionsWithMarketOrders(s, filter, d.ID, d.CID)
}

func (d *Default) OnDisconnect(exchange schema.ExchangeID) any {
	return Disconnected{Strategy: d.ID, Exchange: exchange}
}

func (d *Default) OnTradingDisabled() any {
	return TradingDisabled{Strategy: d.ID}
}
