package state

import (
	"time"

	terr "toucan/internal/errors"
	"toucan/internal/schema"
)

// TimedBalance is a balance with the exchange time it was reported at.
type TimedBalance struct {
	Value schema.Balance `json:"value"`
	Time  time.Time      `json:"time"`
}

// AssetState is the engine view of one asset.
type AssetState struct {
	Asset   schema.AssetKey `json:"asset"`
	Balance *TimedBalance   `json:"balance,omitempty"`
}

// UpdateFromBalance applies balance unless it is older than the stored one.
// It reports whether the balance was applied.
func (s *AssetState) UpdateFromBalance(balance schema.AssetBalance) bool {
	if s.Balance != nil && balance.TimeExchange.Before(s.Balance.Time) {
		return false
	}
	s.Balance = &TimedBalance{Value: balance.Balance, Time: balance.TimeExchange}
	return true
}

// AssetStates holds every tracked asset in insertion order.
type AssetStates struct {
	keys   []schema.AssetKey
	states map[schema.AssetKey]*AssetState
}

func newAssetStates() *AssetStates {
	return &AssetStates{states: make(map[schema.AssetKey]*AssetState)}
}

func (a *AssetStates) add(asset schema.AssetKey) *AssetState {
	if s, ok := a.states[asset]; ok {
		return s
	}
	s := &AssetState{Asset: asset}
	a.keys = append(a.keys, asset)
	a.states[asset] = s
	return s
}

// Asset returns the state of asset.
func (a *AssetStates) Asset(asset schema.AssetKey) (*AssetState, bool) {
	s, ok := a.states[asset]
	return s, ok
}

// All returns every asset state in insertion order.
func (a *AssetStates) All() []*AssetState {
	out := make([]*AssetState, 0, len(a.keys))
	for _, key := range a.keys {
		out = append(out, a.states[key])
	}
	return out
}

// Len returns the number of tracked assets.
func (a *AssetStates) Len() int {
	return len(a.keys)
}

// UpdateFromBalance routes a balance to its asset.
func (a *AssetStates) UpdateFromBalance(balance schema.AssetBalance) (bool, error) {
	s, ok := a.states[balance.Asset]
	if !ok {
		return false, terr.Invariant("asset states do not contain: %s", balance.Asset)
	}
	return s.UpdateFromBalance(balance), nil
}
