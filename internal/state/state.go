package state

import (
	"time"

	"toucan/internal/analytics"
	"toucan/internal/schema"
)

// EngineState is the in-memory aggregate mutated by the engine. Strategies and
// risk managers receive it read-only.
type EngineState struct {
	Trading      TradingState
	Global       GlobalData
	Connectivity *ConnectivityStates
	Assets       *AssetStates
	Instruments  *InstrumentStates
}

// UpdateFromAccount applies an account event and returns the position exit it caused, if any.
// Unknown exchange, asset or instrument keys return an invariant error before any mutation
// of the affected collection.
func (s *EngineState) UpdateFromAccount(event schema.AccountEvent) (*schema.PositionExited, error) {
	if err := s.Connectivity.UpdateFromAccountEvent(event.Exchange); err != nil {
		return nil, err
	}

	var exited *schema.PositionExited
	switch event.Kind {
	case schema.AccountEventSnapshot:
		if event.Snapshot == nil {
			break
		}
		for _, balance := range event.Snapshot.Balances {
			if _, err := s.Assets.UpdateFromBalance(balance); err != nil {
				return nil, err
			}
		}
		for _, snapshot := range event.Snapshot.Instruments {
			instrument, err := s.Instruments.Lookup(snapshot.Instrument)
			if err != nil {
				return nil, err
			}
			for _, order := range snapshot.Orders {
				instrument.Orders.UpdateFromOrderSnapshot(order)
			}
		}

	case schema.AccountEventBalanceSnapshot:
		if event.Balance == nil {
			break
		}
		if _, err := s.Assets.UpdateFromBalance(*event.Balance); err != nil {
			return nil, err
		}

	case schema.AccountEventOrderSnapshot:
		if event.Order == nil {
			break
		}
		instrument, err := s.Instruments.Lookup(event.Order.Key.Instrument)
		if err != nil {
			return nil, err
		}
		instrument.Orders.UpdateFromOrderSnapshot(*event.Order)

	case schema.AccountEventOrderCancelled:
		if event.Cancelled == nil {
			break
		}
		instrument, err := s.Instruments.Lookup(event.Cancelled.Key.Instrument)
		if err != nil {
			return nil, err
		}
		instrument.Orders.UpdateFromCancelResponse(*event.Cancelled)

	case schema.AccountEventTrade:
		if event.Trade == nil {
			break
		}
		instrument, err := s.Instruments.Lookup(event.Trade.Instrument)
		if err != nil {
			return nil, err
		}
		exited = instrument.UpdateFromTrade(*event.Trade)
	}

	if s.Global != nil {
		s.Global.ProcessAccount(event)
	}
	return exited, nil
}

// UpdateFromMarket applies a market event.
func (s *EngineState) UpdateFromMarket(event schema.MarketEvent) error {
	if err := s.Connectivity.UpdateFromMarketEvent(event.Exchange); err != nil {
		return err
	}
	instrument, err := s.Instruments.Lookup(event.Instrument)
	if err != nil {
		return err
	}
	instrument.UpdateFromMarket(event)
	if s.Global != nil {
		s.Global.ProcessMarket(event)
	}
	return nil
}

// RecordInFlightOpens stores sent open requests as in-flight.
func (s *EngineState) RecordInFlightOpens(requests []schema.OrderRequestOpen) error {
	for _, req := range requests {
		instrument, err := s.Instruments.Lookup(req.Key.Instrument)
		if err != nil {
			return err
		}
		instrument.Orders.RecordInFlightOpen(req)
	}
	return nil
}

// RecordInFlightCancels marks sent cancel requests as in-flight.
func (s *EngineState) RecordInFlightCancels(requests []schema.OrderRequestCancel) error {
	for _, req := range requests {
		instrument, err := s.Instruments.Lookup(req.Key.Instrument)
		if err != nil {
			return err
		}
		instrument.Orders.RecordInFlightCancel(req)
	}
	return nil
}

// Balances returns every known asset balance.
func (s *EngineState) Balances() map[schema.AssetKey]schema.AssetBalance {
	out := make(map[schema.AssetKey]schema.AssetBalance, s.Assets.Len())
	for _, asset := range s.Assets.All() {
		if asset.Balance == nil {
			continue
		}
		out[asset.Asset] = schema.AssetBalance{
			Asset:        asset.Asset,
			Balance:      asset.Balance.Value,
			TimeExchange: asset.Balance.Time,
		}
	}
	return out
}

// Builder assembles an EngineState.
type Builder struct {
	instruments []schema.Instrument
	global      GlobalData
	dataInit    func(schema.Instrument) InstrumentData
	timeStart   time.Time
	trading     TradingState
	balances    []schema.AssetBalance
}

// NewBuilder starts an EngineState for instruments. dataInit defaults to NewMarketData.
func NewBuilder(instruments []schema.Instrument, global GlobalData, dataInit func(schema.Instrument) InstrumentData) *Builder {
	if global == nil {
		global = DefaultGlobalData{}
	}
	if dataInit == nil {
		dataInit = NewMarketData
	}
	return &Builder{
		instruments: instruments,
		global:      global,
		dataInit:    dataInit,
		trading:     TradingDisabled,
	}
}

// TimeEngineStart sets the start time used for initial balances and tear sheets.
func (b *Builder) TimeEngineStart(t time.Time) *Builder {
	b.timeStart = t
	return b
}

// TradingState sets the initial trading state.
func (b *Builder) TradingState(s TradingState) *Builder {
	b.trading = s
	return b
}

// Balance adds an initial balance for asset.
func (b *Builder) Balance(asset schema.AssetKey, balance schema.Balance) *Builder {
	b.balances = append(b.balances, schema.AssetBalance{Asset: asset, Balance: balance})
	return b
}

// Build creates the EngineState. Every exchange referenced by an instrument is tracked for
// connectivity; every base, quote and initial-balance asset is tracked for balances.
func (b *Builder) Build() *EngineState {
	var exchanges []schema.ExchangeID
	assets := newAssetStates()
	instruments := newInstrumentStates()

	for _, balance := range b.balances {
		s := assets.add(balance.Asset)
		s.Balance = &TimedBalance{Value: balance.Balance, Time: b.timeStart}
	}

	for _, inst := range b.instruments {
		exchanges = append(exchanges, inst.Exchange)
		if inst.Base != "" {
			assets.add(inst.Base)
		}
		if inst.Quote != "" {
			assets.add(inst.Quote)
		}
		instruments.add(&InstrumentState{
			Key:        inst.Key,
			Instrument: inst,
			TearSheet:  analytics.NewTearSheetGenerator(b.timeStart),
			Orders:     NewOrders(),
			Data:       b.dataInit(inst),
		})
	}

	return &EngineState{
		Trading:      b.trading,
		Global:       b.global,
		Connectivity: NewConnectivityStates(exchanges),
		Assets:       assets,
		Instruments:  instruments,
	}
}
