package state

import (
	"toucan/internal/analytics"
	terr "toucan/internal/errors"
	"toucan/internal/schema"
)

// InstrumentState is the engine view of one instrument.
type InstrumentState struct {
	Key        schema.InstrumentKey
	Instrument schema.Instrument
	TearSheet  analytics.TearSheetGenerator
	Position   PositionManager
	Orders     *Orders
	Data       InstrumentData
}

// UpdateFromTrade applies a trade to the position, feeding the tear sheet on exit.
func (s *InstrumentState) UpdateFromTrade(trade schema.Trade) *schema.PositionExited {
	exited := s.Position.UpdateFromTrade(trade)
	if exited != nil {
		s.TearSheet.UpdateFromPosition(*exited)
	}
	return exited
}

// UpdateFromMarket updates market data and the unrealised PnL of any open position.
func (s *InstrumentState) UpdateFromMarket(event schema.MarketEvent) {
	s.Data.Process(event)
	if s.Position.Current == nil {
		return
	}
	price, ok := s.Data.Price()
	if !ok {
		return
	}
	s.Position.Current.UpdatePnlUnrealised(price)
}

// InstrumentStates holds every instrument in insertion order.
type InstrumentStates struct {
	keys   []schema.InstrumentKey
	states map[schema.InstrumentKey]*InstrumentState
}

func newInstrumentStates() *InstrumentStates {
	return &InstrumentStates{states: make(map[schema.InstrumentKey]*InstrumentState)}
}

func (s *InstrumentStates) add(state *InstrumentState) {
	if _, ok := s.states[state.Key]; ok {
		return
	}
	s.keys = append(s.keys, state.Key)
	s.states[state.Key] = state
}

// Instrument returns the state of key.
func (s *InstrumentStates) Instrument(key schema.InstrumentKey) (*InstrumentState, bool) {
	state, ok := s.states[key]
	return state, ok
}

// Lookup returns the state of key or an invariant error.
func (s *InstrumentStates) Lookup(key schema.InstrumentKey) (*InstrumentState, error) {
	state, ok := s.states[key]
	if !ok {
		return nil, terr.Invariant("instrument states do not contain: %s", key)
	}
	return state, nil
}

// Len returns the number of instruments.
func (s *InstrumentStates) Len() int {
	return len(s.keys)
}

// Filtered returns the instruments matching filter in insertion order.
func (s *InstrumentStates) Filtered(filter InstrumentFilter) []*InstrumentState {
	out := make([]*InstrumentState, 0, len(s.keys))
	for _, key := range s.keys {
		state := s.states[key]
		if filter.Matches(state.Instrument) {
			out = append(out, state)
		}
	}
	return out
}

// Positions returns the open positions of matching instruments.
func (s *InstrumentStates) Positions(filter InstrumentFilter) []*Position {
	var out []*Position
	for _, state := range s.Filtered(filter) {
		if state.Position.Current != nil {
			out = append(out, state.Position.Current)
		}
	}
	return out
}

// TearSheets returns the tear sheet generators of matching instruments.
func (s *InstrumentStates) TearSheets(filter InstrumentFilter) map[schema.InstrumentKey]analytics.TearSheetGenerator {
	out := make(map[schema.InstrumentKey]analytics.TearSheetGenerator)
	for _, state := range s.Filtered(filter) {
		out[state.Key] = state.TearSheet
	}
	return out
}
