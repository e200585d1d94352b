package state

import (
	"slices"

	"toucan/internal/schema"
)

// FilterKind selects how an InstrumentFilter matches.
type FilterKind uint8

const (
	FilterKindNone FilterKind = iota
	FilterKindExchanges
	FilterKindInstruments
	FilterKindUnderlyings
)

// InstrumentFilter selects instruments by exact membership. The zero value matches everything.
type InstrumentFilter struct {
	Kind        FilterKind             `json:"kind"`
	Exchanges   []schema.ExchangeID    `json:"exchanges,omitempty"`
	Instruments []schema.InstrumentKey `json:"instruments,omitempty"`
	Underlyings []string               `json:"underlyings,omitempty"`
}

// NoFilter matches every instrument.
func NoFilter() InstrumentFilter {
	return InstrumentFilter{Kind: FilterKindNone}
}

// ExchangesFilter matches instruments listed on any of exchanges.
func ExchangesFilter(exchanges ...schema.ExchangeID) InstrumentFilter {
	return InstrumentFilter{Kind: FilterKindExchanges, Exchanges: exchanges}
}

// InstrumentsFilter matches the given instruments.
func InstrumentsFilter(instruments ...schema.InstrumentKey) InstrumentFilter {
	return InstrumentFilter{Kind: FilterKindInstruments, Instruments: instruments}
}

// UnderlyingsFilter matches instruments with any of the given underlyings.
func UnderlyingsFilter(underlyings ...string) InstrumentFilter {
	return InstrumentFilter{Kind: FilterKindUnderlyings, Underlyings: underlyings}
}

// Matches reports whether instrument passes the filter.
func (f InstrumentFilter) Matches(instrument schema.Instrument) bool {
	switch f.Kind {
	case FilterKindNone:
		return true
	case FilterKindExchanges:
		return slices.Contains(f.Exchanges, instrument.Exchange)
	case FilterKindInstruments:
		return slices.Contains(f.Instruments, instrument.Key)
	case FilterKindUnderlyings:
		return instrument.Underlying != "" && slices.Contains(f.Underlyings, instrument.Underlying)
	default:
		return false
	}
}
