package state

// TradingState toggles algorithmic order generation.
type TradingState uint8

const (
	TradingUnknown TradingState = iota
	TradingEnabled
	TradingDisabled
)

func (s TradingState) String() string {
	switch s {
	case TradingEnabled:
		return "enabled"
	case TradingDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// TradingStateUpdate is the result of applying a trading state update.
type TradingStateUpdate struct {
	Prev    TradingState
	Current TradingState
}

// TransitionedToDisabled reports an Enabled to Disabled transition.
func (u TradingStateUpdate) TransitionedToDisabled() bool {
	return u.Prev == TradingEnabled && u.Current == TradingDisabled
}

// TransitionedToEnabled reports a transition into Enabled from any other state.
func (u TradingStateUpdate) TransitionedToEnabled() bool {
	return u.Prev != TradingEnabled && u.Current == TradingEnabled
}

// Update sets the state and reports the transition.
func (s *TradingState) Update(next TradingState) TradingStateUpdate {
	update := TradingStateUpdate{Prev: *s, Current: next}
	*s = next
	return update
}
