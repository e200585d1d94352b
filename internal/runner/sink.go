package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"toucan/internal/analytics"
	"toucan/internal/bus"
	"toucan/internal/engine"
	terr "toucan/internal/errors"
	"toucan/internal/obs"
	"toucan/internal/schema"
)

// Sink consumes the audit of every processed event, Shutdown audits included. A sink
// error stops the run.
type Sink interface {
	Handle(ctx context.Context, audit engine.Audit) error
}

// LatencyObserver is implemented by sinks that want the Process duration of every
// non-shutdown audit. It is called before Handle.
type LatencyObserver interface {
	ObserveLatency(audit engine.Audit, d time.Duration)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, audit engine.Audit) error

func (f SinkFunc) Handle(ctx context.Context, audit engine.Audit) error {
	return f(ctx, audit)
}

// Discard drops every audit.
type Discard struct{}

func (Discard) Handle(context.Context, engine.Audit) error { return nil }

// MultiSink hands every audit to each sink in order. All sinks see the audit even when
// an earlier one fails; the errors are joined.
type MultiSink []Sink

func (m MultiSink) Handle(ctx context.Context, audit engine.Audit) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Handle(ctx, audit); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) ObserveLatency(audit engine.Audit, d time.Duration) {
	for _, sink := range m {
		if o, ok := sink.(LatencyObserver); ok {
			o.ObserveLatency(audit, d)
		}
	}
}

// ChannelSink forwards audits to a queue without blocking. Audits are dropped while the
// queue is full.
type ChannelSink struct {
	queue *bus.Queue[engine.Audit]
	drops atomic.Uint64
}

// NewChannelSink forwards audits to queue.
func NewChannelSink(queue *bus.Queue[engine.Audit]) *ChannelSink {
	return &ChannelSink{queue: queue}
}

func (s *ChannelSink) Handle(_ context.Context, audit engine.Audit) error {
	err := s.queue.TryPublish(audit)
	if errors.Is(err, bus.ErrQueueFull) {
		s.drops.Add(1)
		return nil
	}
	return err
}

// Drops returns the number of audits dropped on a full queue.
func (s *ChannelSink) Drops() uint64 {
	return s.drops.Load()
}

// AuditRecorder persists audits, e.g. recorder.Journal.
type AuditRecorder interface {
	Record(ctx context.Context, audit engine.Audit) error
}

// JournalSink records every processed event. Shutdown audits consume no sequence and
// are not journaled.
type JournalSink struct {
	recorder AuditRecorder
}

// NewJournalSink records audits through r.
func NewJournalSink(r AuditRecorder) *JournalSink {
	return &JournalSink{recorder: r}
}

func (s *JournalSink) Handle(ctx context.Context, audit engine.Audit) error {
	if audit.IsShutdown() {
		return nil
	}
	return s.recorder.Record(ctx, audit)
}

// PositionStore persists closed positions, e.g. conn.PositionStore.
type PositionStore interface {
	SavePositionExit(ctx context.Context, exited schema.PositionExited) error
}

// StoreSink saves every position exit.
type StoreSink struct {
	store PositionStore
}

// NewStoreSink saves position exits to store.
func NewStoreSink(store PositionStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Handle(ctx context.Context, audit engine.Audit) error {
	for _, exited := range positionExits(audit) {
		if err := s.store.SavePositionExit(ctx, exited); err != nil {
			return err
		}
	}
	return nil
}

// SummarySink feeds position exits, account balances and engine time to a trading summary
// generator.
type SummarySink struct {
	generator *analytics.TradingSummaryGenerator
}

// NewSummarySink updates generator, e.g. from Engine.TradingSummaryGenerator.
func NewSummarySink(generator *analytics.TradingSummaryGenerator) *SummarySink {
	return &SummarySink{generator: generator}
}

func (s *SummarySink) Handle(_ context.Context, audit engine.Audit) error {
	s.generator.UpdateTimeNow(audit.Context.Time)
	for _, balance := range accountBalances(audit.Event) {
		s.generator.UpdateFromBalance(balance)
	}
	for _, exited := range positionExits(audit) {
		s.generator.UpdateFromPosition(exited)
	}
	return nil
}

func accountBalances(event engine.Event) []schema.AssetBalance {
	if event.Kind != engine.EventKindAccount || event.Account == nil || event.Account.Item == nil {
		return nil
	}
	item := event.Account.Item
	switch item.Kind {
	case schema.AccountEventSnapshot:
		if item.Snapshot != nil {
			return item.Snapshot.Balances
		}
	case schema.AccountEventBalanceSnapshot:
		if item.Balance != nil {
			return []schema.AssetBalance{*item.Balance}
		}
	}
	return nil
}

// Summary generates the summary accumulated so far.
func (s *SummarySink) Summary() analytics.TradingSummary {
	return s.generator.Generate()
}

// MetricsSink counts audits, outputs, errors and refusals, and tracks realised PnL per
// instrument.
type MetricsSink struct {
	metrics *obs.Metrics
	pnl     map[schema.InstrumentKey]decimal.Decimal
}

// NewMetricsSink records into metrics.
func NewMetricsSink(metrics *obs.Metrics) *MetricsSink {
	return &MetricsSink{metrics: metrics, pnl: make(map[schema.InstrumentKey]decimal.Decimal)}
}

func (s *MetricsSink) ObserveLatency(audit engine.Audit, d time.Duration) {
	s.metrics.ObserveEvent(audit.Event.Kind.Type(), audit.Context.Sequence, d)
}

func (s *MetricsSink) Handle(_ context.Context, audit engine.Audit) error {
	for _, out := range audit.Outputs {
		s.metrics.IncOutput(out.Kind.String())
		if out.AlgoOrders != nil {
			s.metrics.AddRefused("cancel", len(out.AlgoOrders.RefusedCancels))
			s.metrics.AddRefused("open", len(out.AlgoOrders.RefusedOpens))
		}
		if out.PositionExit != nil {
			key := out.PositionExit.Instrument
			s.pnl[key] = s.pnl[key].Add(out.PositionExit.PnlRealised)
			s.metrics.SetPnl(key, s.pnl[key].InexactFloat64())
		}
	}
	for _, err := range audit.Errors {
		s.metrics.IncError(terr.IsUnrecoverable(err))
	}
	return nil
}

func positionExits(audit engine.Audit) []schema.PositionExited {
	var out []schema.PositionExited
	for _, o := range audit.Outputs {
		if o.Kind == engine.OutputPositionExit && o.PositionExit != nil {
			out = append(out, *o.PositionExit)
		}
	}
	return out
}
