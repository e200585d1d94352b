package runner

import (
	"fmt"

	"toucan/internal/clock"
	"toucan/internal/engine"
	"toucan/internal/og"
	"toucan/internal/schema"
)

// SimulatedFeed replays market events against in-process mock exchanges. Account events
// produced by the mocks are yielded before the next market event, so a backtest over
// the same market data always produces the same audits.
type SimulatedFeed struct {
	market  Iterator
	mocks   []*og.MockExchange
	pending []schema.AccountStreamEvent
	ids     uint64
}

// NewSimulatedFeed wraps market, which should only yield market events.
func NewSimulatedFeed(market Iterator) *SimulatedFeed {
	return &SimulatedFeed{market: market}
}

// Attach creates a mock exchange sharing clk with the engine and routes it in txs. The
// initial account snapshot is queued as the first feed event.
func (f *SimulatedFeed) Attach(txs *og.TxMap, cfg og.MockConfig, instruments []schema.Instrument, clk clock.Clock) *og.MockExchange {
	mock := og.NewMockExchange(cfg, instruments, clk, f.emit).WithIDs(f.nextID)
	txs.Register(mock.Exchange(), mock.Tx())
	f.mocks = append(f.mocks, mock)
	mock.Snapshot()
	return mock
}

func (f *SimulatedFeed) Next() (engine.Event, bool) {
	for _, mock := range f.mocks {
		mock.Drain()
	}
	if len(f.pending) != 0 {
		event := f.pending[0]
		f.pending = f.pending[1:]
		return engine.AccountEvent(event), true
	}

	event, ok := f.market.Next()
	if !ok {
		return engine.Event{}, false
	}
	if event.Kind == engine.EventKindMarket && event.Market != nil && event.Market.Item != nil {
		for _, mock := range f.mocks {
			mock.MatchMarket(*event.Market.Item)
		}
	}
	return event, true
}

func (f *SimulatedFeed) emit(event schema.AccountStreamEvent) {
	f.pending = append(f.pending, event)
}

func (f *SimulatedFeed) nextID() string {
	f.ids++
	return fmt.Sprintf("sim-%d", f.ids)
}
