package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"toucan/internal/analytics"
	"toucan/internal/clock"
	terr "toucan/internal/errors"
	"toucan/internal/og"
	"toucan/internal/risk"
	"toucan/internal/schema"
	"toucan/internal/state"
	"toucan/internal/strategy"
)

var ErrUnknownEvent = errors.New("unknown engine event")

// Engine processes events one at a time. It is a single writer: Process must not be
// called concurrently.
type Engine struct {
	clock    clock.Clock
	meta     Meta
	state    *state.EngineState
	txs      *og.TxMap
	strategy strategy.Strategy
	risk     risk.RiskManager
}

// New creates an engine. A nil risk manager approves everything.
func New(clk clock.Clock, s *state.EngineState, txs *og.TxMap, strat strategy.Strategy, rm risk.RiskManager) *Engine {
	if clk == nil {
		clk = clock.Live{}
	}
	if txs == nil {
		txs = og.NewTxMap()
	}
	if rm == nil {
		rm = risk.Default{}
	}
	return &Engine{
		clock:    clk,
		meta:     Meta{TimeStart: clk.Time()},
		state:    s,
		txs:      txs,
		strategy: strat,
		risk:     rm,
	}
}

// State returns the engine state. Callers must not mutate it.
func (e *Engine) State() *state.EngineState {
	return e.state
}

// Time returns the engine time.
func (e *Engine) Time() time.Time {
	return e.clock.Time()
}

// Meta returns the start time and next sequence.
func (e *Engine) Meta() Meta {
	return e.meta
}

// ResetMeta restarts the sequence at zero from the current engine time.
func (e *Engine) ResetMeta() {
	e.meta = Meta{TimeStart: e.clock.Time()}
}

// Process applies event and returns its audit. Every event except Shutdown consumes
// exactly one sequence.
func (e *Engine) Process(event Event) Audit {
	if ts, ok := event.TimeExchange(); ok {
		e.clock.Observe(ts)
	}

	var outputs []Output
	var errs []error

	switch event.Kind {
	case EventKindShutdown:
		return Audit{
			Kind:    AuditShutdown,
			Context: Context{Sequence: e.meta.Sequence, Time: e.clock.Time()},
			Event:   event,
		}

	case EventKindCommand:
		if event.Command == nil {
			errs = append(errs, terr.Recoverable(ErrUnknownEvent))
			break
		}
		out := e.Action(*event.Command)
		outputs = append(outputs, commandedOutput(out))
		if unrecoverable := out.UnrecoverableErrors(); len(unrecoverable) != 0 {
			return e.audit(event, outputs, unrecoverable)
		}

	case EventKindTradingStateUpdate:
		update := e.state.Trading.Update(event.TradingState)
		logs.Infof("trading state %s -> %s", update.Prev, update.Current)
		if update.TransitionedToDisabled() {
			outputs = append(outputs, hookOutput(OutputOnTradingDisabled, e.strategy.OnTradingDisabled()))
		}

	case EventKindAccount:
		outputs = append(outputs, e.processAccount(event.Account)...)

	case EventKindMarket:
		outputs = append(outputs, e.processMarket(event.Market)...)

	default:
		errs = append(errs, terr.Recoverable(ErrUnknownEvent))
	}

	if e.state.Trading == state.TradingEnabled {
		algo := e.generateAlgoOrders()
		if !algo.IsEmpty() {
			outputs = append(outputs, algoOrdersOutput(algo))
		}
		errs = append(errs, algo.UnrecoverableErrors()...)
	}

	return e.audit(event, outputs, errs)
}

func (e *Engine) processAccount(event *schema.AccountStreamEvent) []Output {
	switch {
	case event == nil:
		return nil
	case event.Reconnecting:
		e.invariant(e.state.Connectivity.UpdateFromAccountReconnecting(event.Exchange))
		logs.Infof("account stream reconnecting, exchange: %s", event.Exchange)
		return []Output{hookOutput(OutputAccountDisconnect, e.strategy.OnDisconnect(event.Exchange))}
	case event.Item != nil:
		exited, err := e.state.UpdateFromAccount(*event.Item)
		e.invariant(err)
		if exited != nil {
			return []Output{positionExitOutput(*exited)}
		}
	}
	return nil
}

func (e *Engine) processMarket(event *schema.MarketStreamEvent) []Output {
	switch {
	case event == nil:
		return nil
	case event.Reconnecting:
		e.invariant(e.state.Connectivity.UpdateFromMarketReconnecting(event.Exchange))
		logs.Infof("market stream reconnecting, exchange: %s", event.Exchange)
		return []Output{hookOutput(OutputMarketDisconnect, e.strategy.OnDisconnect(event.Exchange))}
	case event.Item != nil:
		e.invariant(e.state.UpdateFromMarket(*event.Item))
	}
	return nil
}

func (e *Engine) audit(event Event, outputs []Output, errs []error) Audit {
	return Audit{
		Kind:    AuditProcess,
		Context: Context{Sequence: e.meta.next(), Time: e.clock.Time()},
		Event:   event,
		Outputs: outputs,
		Errors:  errs,
	}
}

// invariant panics on a state invariant violation. The state was built from the same
// instruments the streams are keyed by, so an unknown key is a programming error.
func (e *Engine) invariant(err error) {
	if err == nil {
		return
	}
	logs.Errorf("engine %s, sequence: %d", err, e.meta.Sequence)
	panic(err)
}

// Shutdown asks every execution client to stop.
func (e *Engine) Shutdown() {
	if err := e.txs.Broadcast(og.ShutdownRequest()); err != nil {
		logs.Errorf("broadcast shutdown, err: %+v", err)
	}
}

// TradingSummaryGenerator seeds a summary generator with the current tear sheets and balances.
func (e *Engine) TradingSummaryGenerator(riskFreeReturn decimal.Decimal) *analytics.TradingSummaryGenerator {
	return analytics.NewTradingSummaryGenerator(
		riskFreeReturn,
		e.meta.TimeStart,
		e.clock.Time(),
		e.state.Instruments.TearSheets(state.NoFilter()),
		e.state.Balances(),
	)
}
